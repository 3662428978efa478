// Package session translates VAD (or hotkey) activity into the pipeline's
// start/end signal: a pure mapping with no state beyond "did we already
// see a Start without a matching End" (spec §4.6).
package session

import (
	"sync/atomic"
	"time"

	"github.com/coldvox/coldvox/pkg/vad"
)

// Source identifies what drove a SessionEvent.
type Source string

const (
	SourceVAD    Source = "VAD"
	SourceHotkey Source = "HOTKEY"
)

// EventType tags SessionEvent.
type EventType string

const (
	Start EventType = "START"
	End   EventType = "END"
)

// Event is the Start/End tagged variant from spec §3. Invariant: Start
// precedes End for the same source; an unmatched End is ignored.
type Event struct {
	Type    EventType
	Source  Source
	Instant time.Time
}

// ActivationMode selects what drives SessionEvents.
type ActivationMode int

const (
	ActivationVAD ActivationMode = iota
	ActivationHotkey
)

// Translator maps upstream activity to SessionEvents on a bounded channel,
// per spec §4.6 ("Emits on a bounded channel (capacity ≥ 100). Discards
// events when the channel is full (overflow counter).").
type Translator struct {
	mode atomic.Int32 // ActivationMode; SetMode may run on another goroutine

	vadStarted    bool
	hotkeyStarted bool

	out      chan Event
	overflow uint64
}

const defaultCapacity = 100

func NewTranslator(mode ActivationMode) *Translator {
	t := &Translator{out: make(chan Event, defaultCapacity)}
	t.mode.Store(int32(mode))
	return t
}

// Events returns the bounded SessionEvent channel.
func (t *Translator) Events() <-chan Event { return t.out }

// Overflow reports how many events were discarded because the channel was
// full.
func (t *Translator) Overflow() uint64 { return t.overflow }

// SetMode switches between VAD-driven and hotkey-driven activation
// (spec §13 set_activation_mode). Switching modes does not synthesize a
// matching End for whichever source was mid-session; per spec, an
// unmatched End is simply ignored when the other source eventually fires.
func (t *Translator) SetMode(mode ActivationMode) {
	t.mode.Store(int32(mode))
}

// OnVADEvent consumes a vad.Event. Only SpeechStart/SpeechEnd produce a
// SessionEvent, and only when the translator is in VAD activation mode.
func (t *Translator) OnVADEvent(ev vad.Event) {
	if ActivationMode(t.mode.Load()) != ActivationVAD {
		return
	}
	switch ev.Type {
	case vad.SpeechStart:
		if t.vadStarted {
			return
		}
		t.vadStarted = true
		t.emit(Event{Type: Start, Source: SourceVAD, Instant: ev.Timestamp})
	case vad.SpeechEnd:
		if !t.vadStarted {
			return // unmatched End is ignored
		}
		t.vadStarted = false
		t.emit(Event{Type: End, Source: SourceVAD, Instant: ev.Timestamp})
	}
}

// OnHotkeyPress/OnHotkeyRelease drive session boundaries in hotkey
// activation mode (spec §4.6 "In hotkey activation mode, uses hotkey
// press/release instead").
func (t *Translator) OnHotkeyPress(at time.Time) {
	if ActivationMode(t.mode.Load()) != ActivationHotkey || t.hotkeyStarted {
		return
	}
	t.hotkeyStarted = true
	t.emit(Event{Type: Start, Source: SourceHotkey, Instant: at})
}

func (t *Translator) OnHotkeyRelease(at time.Time) {
	if ActivationMode(t.mode.Load()) != ActivationHotkey || !t.hotkeyStarted {
		return
	}
	t.hotkeyStarted = false
	t.emit(Event{Type: End, Source: SourceHotkey, Instant: at})
}

func (t *Translator) emit(ev Event) {
	select {
	case t.out <- ev:
	default:
		t.overflow++
	}
}
