package session

import (
	"testing"
	"time"

	"github.com/coldvox/coldvox/pkg/vad"
)

func TestVADSpeechStartEndProducesSessionEvents(t *testing.T) {
	tr := NewTranslator(ActivationVAD)
	now := time.Now()
	tr.OnVADEvent(vad.Event{Type: vad.SpeechStart, Timestamp: now})
	tr.OnVADEvent(vad.Event{Type: vad.SpeechEnd, Timestamp: now.Add(time.Second)})

	start := <-tr.Events()
	end := <-tr.Events()
	if start.Type != Start || start.Source != SourceVAD {
		t.Fatalf("unexpected start event: %+v", start)
	}
	if end.Type != End || end.Source != SourceVAD {
		t.Fatalf("unexpected end event: %+v", end)
	}
}

func TestUnmatchedEndIsIgnored(t *testing.T) {
	tr := NewTranslator(ActivationVAD)
	tr.OnVADEvent(vad.Event{Type: vad.SpeechEnd, Timestamp: time.Now()})
	select {
	case ev := <-tr.Events():
		t.Fatalf("expected no event for unmatched End, got %+v", ev)
	default:
	}
}

func TestDuplicateStartIsIgnoredUntilEnd(t *testing.T) {
	tr := NewTranslator(ActivationVAD)
	now := time.Now()
	tr.OnVADEvent(vad.Event{Type: vad.SpeechStart, Timestamp: now})
	tr.OnVADEvent(vad.Event{Type: vad.SpeechStart, Timestamp: now})

	<-tr.Events() // the first Start
	select {
	case ev := <-tr.Events():
		t.Fatalf("expected no second Start, got %+v", ev)
	default:
	}
}

func TestHotkeyModeIgnoresVADEvents(t *testing.T) {
	tr := NewTranslator(ActivationHotkey)
	tr.OnVADEvent(vad.Event{Type: vad.SpeechStart, Timestamp: time.Now()})
	select {
	case ev := <-tr.Events():
		t.Fatalf("expected VAD events ignored in hotkey mode, got %+v", ev)
	default:
	}
}

func TestHotkeyPressRelease(t *testing.T) {
	tr := NewTranslator(ActivationHotkey)
	now := time.Now()
	tr.OnHotkeyPress(now)
	tr.OnHotkeyRelease(now.Add(time.Second))

	start := <-tr.Events()
	end := <-tr.Events()
	if start.Type != Start || start.Source != SourceHotkey {
		t.Fatalf("unexpected start: %+v", start)
	}
	if end.Type != End || end.Source != SourceHotkey {
		t.Fatalf("unexpected end: %+v", end)
	}
}

func TestOverflowCounterIncrementsWhenChannelFull(t *testing.T) {
	tr := NewTranslator(ActivationHotkey)
	// Fill the bounded channel without draining it.
	for i := 0; i < defaultCapacity+5; i++ {
		if i%2 == 0 {
			tr.OnHotkeyPress(time.Now())
		} else {
			tr.OnHotkeyRelease(time.Now())
		}
	}
	if tr.Overflow() == 0 {
		t.Fatal("expected overflow counter to increment once the channel filled up")
	}
}
