package dictation

import (
	"testing"
	"time"
)

func TestAddFinalTransitionsIdleToBuffering(t *testing.T) {
	s := New(DefaultConfig(), nil)
	s.AddFinal("hello", time.Now())
	if s.State() != Buffering {
		t.Fatalf("expected Buffering, got %v", s.State())
	}
}

func TestEmptyOrWhitespaceFinalIsDropped(t *testing.T) {
	s := New(DefaultConfig(), nil)
	ready := s.AddFinal("   ", time.Now())
	if ready || s.State() != Idle {
		t.Fatalf("expected whitespace-only final to be dropped, got state %v", s.State())
	}
}

func TestFlushOnTerminalPunctuation(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, nil)
	ready := s.AddFinal("is this working?", time.Now())
	if !ready {
		t.Fatal("expected ready after terminal punctuation")
	}
	if s.State() != ReadyToInject {
		t.Fatalf("expected ReadyToInject, got %v", s.State())
	}
}

func TestFlushOnMaxBufferSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBufferSize = 10
	cfg.FlushOnPunctuation = false
	s := New(cfg, nil)
	ready := s.AddFinal("this sentence has no terminal and is long", time.Now())
	if !ready {
		t.Fatal("expected ready once buffer exceeds max size")
	}
}

func TestTakeBufferJoinsAndResets(t *testing.T) {
	s := New(DefaultConfig(), nil)
	s.AddFinal("hello", time.Now())
	s.AddFinal("world.", time.Now())
	text := s.TakeBuffer()
	if text != "hello world." {
		t.Fatalf("unexpected joined text: %q", text)
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle after TakeBuffer, got %v", s.State())
	}
}

func TestWhitespaceNormalization(t *testing.T) {
	s := New(DefaultConfig(), nil)
	s.AddFinal("hello   there\n\tworld", time.Now())
	text := s.TakeBuffer()
	if text != "hello there world" {
		t.Fatalf("unexpected normalized text: %q", text)
	}
}

func TestBufferingToWaitingForSilenceOnPause(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferPauseTimeoutMs = 50 * time.Millisecond
	cfg.SilenceTimeoutMs = 10 * time.Millisecond
	s := New(cfg, nil)
	base := time.Now()
	s.AddFinal("hello", base)

	if ready := s.CheckSilence(base.Add(10 * time.Millisecond)); ready {
		t.Fatal("expected not ready yet")
	}
	if s.State() != Buffering {
		t.Fatalf("expected still Buffering, got %v", s.State())
	}

	s.CheckSilence(base.Add(60 * time.Millisecond))
	if s.State() != WaitingForSilence {
		t.Fatalf("expected WaitingForSilence, got %v", s.State())
	}

	ready := s.CheckSilence(base.Add(80 * time.Millisecond))
	if !ready || s.State() != ReadyToInject {
		t.Fatalf("expected ReadyToInject after silence timeout, got %v (ready=%v)", s.State(), ready)
	}
}

func TestAddFinalDuringWaitingForSilenceResetsToBuffering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferPauseTimeoutMs = 10 * time.Millisecond
	cfg.SilenceTimeoutMs = 100 * time.Millisecond
	s := New(cfg, nil)
	base := time.Now()
	s.AddFinal("hello", base)
	s.CheckSilence(base.Add(20 * time.Millisecond))
	if s.State() != WaitingForSilence {
		t.Fatalf("expected WaitingForSilence, got %v", s.State())
	}

	s.AddFinal("world", base.Add(25*time.Millisecond))
	if s.State() != Buffering {
		t.Fatalf("expected AddFinal to reset to Buffering, got %v", s.State())
	}
}
