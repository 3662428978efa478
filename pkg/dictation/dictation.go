// Package dictation buffers Final transcripts and decides when to flush
// them to injection: a single-owner actor state machine (spec §4.8),
// modeled on the teacher's ManagedStream single-writer discipline.
package dictation

import (
	"strings"
	"sync"
	"time"
)

// State is the session's buffering state.
type State int

const (
	Idle State = iota
	Buffering
	WaitingForSilence
	ReadyToInject
)

func (s State) String() string {
	switch s {
	case Buffering:
		return "buffering"
	case WaitingForSilence:
		return "waiting_for_silence"
	case ReadyToInject:
		return "ready_to_inject"
	default:
		return "idle"
	}
}

// Config holds the tunables from spec §4.8.
type Config struct {
	SilenceTimeoutMs     time.Duration // default 0 = immediate
	BufferPauseTimeoutMs time.Duration // default 0
	MaxBufferSize        int           // default 5000 chars
	JoinSeparator        string        // default " "
	FlushOnPunctuation   bool          // default true
	TerminalPunctuation  string        // default ".!?;"
	NormalizeWhitespace  bool          // default true

	// LogInterval throttles diagnostic logging (spec: "at 500ms intervals").
	LogInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		SilenceTimeoutMs:    0,
		MaxBufferSize:       5000,
		JoinSeparator:       " ",
		FlushOnPunctuation:  true,
		TerminalPunctuation: ".!?;",
		NormalizeWhitespace: true,
		LogInterval:         500 * time.Millisecond,
	}
}

type Logger interface {
	Debug(msg string, args ...interface{})
}

// Session is a single-owner actor: AddFinal/CheckSilence/TakeBuffer are
// called only from the pipeline's session-processing goroutine, so no
// internal locking is required for state transitions; a mutex guards only
// state, which State() reads from other goroutines.
type Session struct {
	cfg    Config
	logger Logger

	state      State
	segments   []string
	totalChars int

	lastAddAt     time.Time
	silenceSince  time.Time
	lastLoggedAt  time.Time

	mu sync.Mutex // guards state for cross-goroutine State() reads
}

func New(cfg Config, logger Logger) *Session {
	return &Session{cfg: cfg, logger: logger}
}

// State reports the current state (safe to call from other goroutines).
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// AddFinal appends a Final transcript to the buffer (spec §4.8). Empty or
// whitespace-only input is dropped. Returns true if the session is now
// ReadyToInject.
func (s *Session) AddFinal(text string, at time.Time) bool {
	normalized := text
	if s.cfg.NormalizeWhitespace {
		normalized = normalizeWhitespace(text)
	}
	if strings.TrimSpace(normalized) == "" {
		return false
	}

	s.segments = append(s.segments, normalized)
	s.totalChars += len(normalized)
	s.lastAddAt = at
	s.silenceSince = time.Time{}

	switch s.State() {
	case Idle, WaitingForSilence:
		s.setState(Buffering)
	}

	if s.shouldFlush(normalized) {
		s.setState(ReadyToInject)
		return true
	}
	return false
}

func (s *Session) shouldFlush(lastAdded string) bool {
	if s.cfg.FlushOnPunctuation && endsWithTerminal(lastAdded, s.cfg.TerminalPunctuation) {
		return true
	}
	if s.totalChars > s.cfg.MaxBufferSize {
		return true
	}
	return false
}

// CheckSilence re-evaluates timing-driven transitions: Buffering →
// WaitingForSilence once the last add is older than BufferPauseTimeoutMs,
// and WaitingForSilence → ReadyToInject once SilenceTimeoutMs has elapsed
// since entering WaitingForSilence (spec §4.8). Call this periodically
// (e.g. once per frame period) from the owning goroutine.
func (s *Session) CheckSilence(now time.Time) bool {
	switch s.State() {
	case Buffering:
		if s.cfg.BufferPauseTimeoutMs > 0 && now.Sub(s.lastAddAt) >= s.cfg.BufferPauseTimeoutMs {
			s.silenceSince = now
			s.setState(WaitingForSilence)
		}
	case WaitingForSilence:
		if s.silenceSince.IsZero() {
			s.silenceSince = now
		}
		if now.Sub(s.silenceSince) >= s.cfg.SilenceTimeoutMs {
			s.setState(ReadyToInject)
			return true
		}
	}
	s.logThrottled(now)
	return false
}

func (s *Session) logThrottled(now time.Time) {
	if s.logger == nil {
		return
	}
	if !s.lastLoggedAt.IsZero() && now.Sub(s.lastLoggedAt) < s.cfg.LogInterval {
		return
	}
	s.lastLoggedAt = now
	s.logger.Debug("dictation: state check", "state", s.State().String(), "buffered_chars", s.totalChars)
}

// TakeBuffer returns the joined buffered text and resets to Idle
// (spec §4.8 "on take_buffer() returns joined string and resets to Idle").
func (s *Session) TakeBuffer() string {
	joined := strings.Join(s.segments, s.cfg.JoinSeparator)
	s.segments = nil
	s.totalChars = 0
	s.lastAddAt = time.Time{}
	s.silenceSince = time.Time{}
	s.setState(Idle)
	return joined
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func endsWithTerminal(s string, terminals string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return strings.IndexByte(terminals, last) >= 0
}
