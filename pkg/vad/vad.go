// Package vad turns a stream of fixed-size audio frames into SpeechStart/
// SpeechEnd events via a shared hysteresis state machine (spec §4.5),
// fed by a pluggable Detector (energy-based or neural).
package vad

import (
	"time"

	"github.com/coldvox/coldvox/pkg/frame"
)

// EventType tags the Event union, following the teacher's VADEventType
// pattern (pkg/orchestrator/types.go) generalized with two more states.
type EventType string

const (
	SpeechStart EventType = "SPEECH_START"
	SpeechEnd   EventType = "SPEECH_END"
	Silence     EventType = "SILENCE"
)

// Event mirrors the teacher's VADEvent shape, with energy_dB/duration
// fields added per spec §4.5 ("On SpeechStart, emit with current
// energy_dB; on SpeechEnd, emit with duration from matching start").
type Event struct {
	Type      EventType
	Timestamp time.Time
	EnergyDB  float64
	Duration  time.Duration
}

// Detector produces a speech probability in [0,1] for one frame. Energy
// and Neural detectors both implement this; the hysteresis state machine
// in Processor is shared between them.
type Detector interface {
	// Score returns p in [0,1] and the frame's energy in dBFS (for
	// Event.EnergyDB on SpeechStart).
	Score(f frame.AudioFrame) (p float64, energyDB float64, err error)
	Name() string
}

type state int

const (
	stateSilent state = iota
	stateMaybeSpeech
	stateSpeech
	stateMaybeSilence
)

// framePeriod is the fixed duration of one AudioFrame (512 samples @
// 16kHz = 32ms), used to convert min_speech_ms/min_silence_ms into frame
// counts (spec §4.5).
const framePeriod = 32 * time.Millisecond

// Config holds the hysteresis thresholds from spec §4.5.
type Config struct {
	Threshold    float64       // default 0.5
	MinSpeechMs  time.Duration // default 100ms
	MinSilenceMs time.Duration // default 300ms
}

func DefaultConfig() Config {
	return Config{
		Threshold:    0.5,
		MinSpeechMs:  100 * time.Millisecond,
		MinSilenceMs: 300 * time.Millisecond,
	}
}

// Processor runs the hysteresis state machine described in spec §4.5,
// generalized from the teacher's RMSVAD.Process (pkg/orchestrator/vad.go)
// to a four-state machine driven by an arbitrary Detector's probability
// output instead of only RMS.
type Processor struct {
	detector Detector
	cfg      Config

	st                state
	consecutiveOver   int
	consecutiveUnder  int
	speechStart       time.Time

	minSpeechFrames  int
	minSilenceFrames int

	inferenceErrors uint64
}

func NewProcessor(detector Detector, cfg Config) *Processor {
	// Ceiling, not floor: spec §8 requires SpeechStart/SpeechEnd to fire on
	// the ceil(min_*_ms/frame_ms)-th frame, so a partial final frame still
	// counts as needing the full next frame (100ms/32ms -> 4, not 3).
	minSpeechFrames := int((cfg.MinSpeechMs + framePeriod - 1) / framePeriod)
	if minSpeechFrames < 1 {
		minSpeechFrames = 1
	}
	minSilenceFrames := int((cfg.MinSilenceMs + framePeriod - 1) / framePeriod)
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}
	return &Processor{
		detector:         detector,
		cfg:              cfg,
		minSpeechFrames:  minSpeechFrames,
		minSilenceFrames: minSilenceFrames,
	}
}

// InferenceErrors reports how many frames were skipped due to detector
// errors (spec §4.5 "runtime inference errors skip the frame and
// increment a counter").
func (p *Processor) InferenceErrors() uint64 { return p.inferenceErrors }

// Reset returns the processor to its initial Silent state.
func (p *Processor) Reset() {
	p.st = stateSilent
	p.consecutiveOver = 0
	p.consecutiveUnder = 0
	p.speechStart = time.Time{}
}

// Process scores one frame and advances the hysteresis state machine,
// returning an Event when a state transition (or steady-state silence)
// produces one. A detector error skips the frame entirely (no event).
func (p *Processor) Process(f frame.AudioFrame) *Event {
	prob, energyDB, err := p.detector.Score(f)
	if err != nil {
		p.inferenceErrors++
		return nil
	}
	now := f.CaptureTimestamp
	if now.IsZero() {
		now = time.Now()
	}

	over := prob >= p.cfg.Threshold

	switch p.st {
	case stateSilent:
		if over {
			p.consecutiveOver = 1
			p.st = stateMaybeSpeech
			if p.minSpeechFrames <= 1 {
				p.st = stateSpeech
				p.speechStart = now
				return &Event{Type: SpeechStart, Timestamp: now, EnergyDB: energyDB}
			}
			return nil
		}
		return &Event{Type: Silence, Timestamp: now, EnergyDB: energyDB}

	case stateMaybeSpeech:
		if over {
			p.consecutiveOver++
			if p.consecutiveOver >= p.minSpeechFrames {
				p.st = stateSpeech
				p.speechStart = now
				return &Event{Type: SpeechStart, Timestamp: now, EnergyDB: energyDB}
			}
			return nil
		}
		p.consecutiveOver = 0
		p.st = stateSilent
		return &Event{Type: Silence, Timestamp: now, EnergyDB: energyDB}

	case stateSpeech:
		if over {
			p.consecutiveUnder = 0
			return nil
		}
		p.consecutiveUnder = 1
		p.st = stateMaybeSilence
		if p.minSilenceFrames <= 1 {
			p.st = stateSilent
			dur := now.Sub(p.speechStart)
			p.speechStart = time.Time{}
			return &Event{Type: SpeechEnd, Timestamp: now, EnergyDB: energyDB, Duration: dur}
		}
		return nil

	case stateMaybeSilence:
		if !over {
			p.consecutiveUnder++
			if p.consecutiveUnder >= p.minSilenceFrames {
				p.st = stateSilent
				dur := now.Sub(p.speechStart)
				p.speechStart = time.Time{}
				return &Event{Type: SpeechEnd, Timestamp: now, EnergyDB: energyDB, Duration: dur}
			}
			return nil
		}
		p.consecutiveUnder = 0
		p.st = stateSpeech
		return nil
	}
	return nil
}
