package capture

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/coldvox/coldvox/pkg/device"
	"github.com/coldvox/coldvox/pkg/ringbuf"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type fakeStream struct {
	mu      sync.Mutex
	stopped bool
	closed  bool
}

func (s *fakeStream) Start() error { return nil }
func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// fakeBackend fails to produce audio for every name in failNames, and
// otherwise delivers one silent frame immediately and then one frame per
// tick on a ticker, until the returned Stream is stopped.
type fakeBackend struct {
	mu        sync.Mutex
	infos     []device.Info
	defaultIn string
	hasDef    bool
	failNames map[string]bool
	opened    []string

	feed bool // whether to keep delivering frames after the first
}

func (f *fakeBackend) EnumerateInputs() ([]device.Info, error) { return f.infos, nil }
func (f *fakeBackend) DefaultInputName() (string, bool)        { return f.defaultIn, f.hasDef }

func (f *fakeBackend) Open(ctx context.Context, name string, onSamples func(SampleFormat, []byte, DeviceConfig)) (Stream, error) {
	f.mu.Lock()
	f.opened = append(f.opened, name)
	fail := f.failNames[name]
	f.mu.Unlock()

	stream := &fakeStream{}
	if fail {
		return stream, nil // Open succeeds but never calls onSamples -> preflight times out
	}

	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:2], 0)
	binary.LittleEndian.PutUint16(raw[2:4], 0)
	cfg := DeviceConfig{SampleRate: 16000, Channels: 1}

	go func() {
		onSamples(FormatI16, raw, cfg)
		if !f.feed {
			return
		}
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stream.mu.Lock()
				stopped := stream.stopped
				stream.mu.Unlock()
				if stopped {
					return
				}
				onSamples(FormatI16, raw, cfg)
			}
		}
	}()

	return stream, nil
}

func newTestThread(backend *fakeBackend) *Thread {
	ring := ringbuf.New(4096)
	return New(backend, ring, noopLogger{})
}

func TestStartOpensFirstWorkingCandidate(t *testing.T) {
	backend := &fakeBackend{
		infos:     []device.Info{{Name: "hw:0,0"}},
		defaultIn: "hw:0,0",
		hasDef:    true,
		failNames: map[string]bool{},
		feed:      true,
	}
	th := newTestThread(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := th.Start(ctx, "hw:0,0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.State() != StateRunning {
		t.Errorf("expected running, got %v", th.State())
	}
	th.Stop()
}

func TestStartFallsThroughFailingCandidates(t *testing.T) {
	backend := &fakeBackend{
		infos:     []device.Info{{Name: "hw:0,0"}, {Name: "hw:1,0"}},
		defaultIn: "hw:0,0",
		hasDef:    true,
		failNames: map[string]bool{"bad-device": true, "hw:0,0": true},
		feed:      true,
	}
	// "bad-device" and "hw:0,0" each fail preflight after the full 3s
	// preflightTimeout before "hw:1,0" is opened.
	th := newTestThread(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- th.Start(ctx, "bad-device") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(preflightTimeout*2 + time.Second):
		t.Fatal("Start did not return in time")
	}
	if th.State() != StateRunning {
		t.Errorf("expected running, got %v", th.State())
	}
	th.Stop()
}

func TestStartReturnsFatalWhenAllCandidatesFail(t *testing.T) {
	backend := &fakeBackend{
		infos:     []device.Info{{Name: "hw:0,0"}},
		failNames: map[string]bool{"hw:0,0": true, "": true},
	}
	th := newTestThread(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := th.Start(ctx, "hw:0,0")
	if err != ErrFatal {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
	if th.State() != StateStopped {
		t.Errorf("expected stopped, got %v", th.State())
	}
}

func TestStopClosesEventsChannel(t *testing.T) {
	backend := &fakeBackend{
		infos:     []device.Info{{Name: "hw:0,0"}},
		defaultIn: "hw:0,0",
		hasDef:    true,
		feed:      true,
	}
	th := newTestThread(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := th.Start(ctx, "hw:0,0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	th.Stop()

	_, ok := <-th.Events()
	if ok {
		t.Fatalf("expected events channel to be closed")
	}
}

func TestDeviceConfigReflectsOpenedStream(t *testing.T) {
	backend := &fakeBackend{
		infos:     []device.Info{{Name: "hw:0,0"}},
		defaultIn: "hw:0,0",
		hasDef:    true,
		feed:      true,
	}
	th := newTestThread(backend)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := th.Start(ctx, "hw:0,0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := th.DeviceConfig()
	if cfg.SampleRate != 16000 || cfg.Channels != 1 {
		t.Errorf("unexpected device config: %+v", cfg)
	}
	th.Stop()
}
