package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldvox/coldvox/pkg/device"
	"github.com/coldvox/coldvox/pkg/ringbuf"
)

// DeviceConfig is emitted whenever the capture thread (re)opens a stream, so
// downstream resampling (pkg/frame) can reconfigure itself (spec §3).
type DeviceConfig struct {
	SampleRate uint32
	Channels   uint16
}

// DeviceEventType tags the DeviceEvent union (spec §3).
type DeviceEventType string

const (
	DeviceAdded                 DeviceEventType = "DEVICE_ADDED"
	DeviceRemoved               DeviceEventType = "DEVICE_REMOVED"
	CurrentDeviceDisconnected   DeviceEventType = "CURRENT_DEVICE_DISCONNECTED"
	DeviceSwitched              DeviceEventType = "DEVICE_SWITCHED"
	DeviceSwitchRequested       DeviceEventType = "DEVICE_SWITCH_REQUESTED"
	DeviceSwitchFailed          DeviceEventType = "DEVICE_SWITCH_FAILED"
)

// DeviceEvent is the tagged variant from spec §3. Not every field is set
// for every Type: Name applies to DeviceAdded, DeviceRemoved and
// CurrentDeviceDisconnected; From/To to DeviceSwitched; Target to
// DeviceSwitchRequested; Attempted/Fallback to DeviceSwitchFailed.
type DeviceEvent struct {
	Type      DeviceEventType
	Name      string
	From      string
	To        string
	Target    string
	Attempted string
	Fallback  string
}

// State is the capture thread's lifecycle state (spec §4.3: Stopped →
// Running → Restarting → Running, cycling; Running → Stopped on shutdown).
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	default:
		return "stopped"
	}
}

// Stream is one open audio input stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Backend abstracts the concrete audio library (MalgoBackend in
// malgo_backend.go wires github.com/gen2brain/malgo behind this) so Thread is unit-testable
// without a real sound device.
type Backend interface {
	device.Enumerator
	// Open starts delivering raw samples for name (or the OS default if
	// name is empty) to onSamples, which receives the native format, the
	// raw bytes for one callback period, and the stream's DeviceConfig.
	Open(ctx context.Context, name string, onSamples func(format SampleFormat, raw []byte, cfg DeviceConfig)) (Stream, error)
}

const (
	preflightTimeout  = 3 * time.Second
	watchdogTimeout   = 5 * time.Second
	recoveryBackoff   = 100 * time.Millisecond
	monitorInterval   = 2 * time.Second
	stagingSampleSize = 4096
)

// Thread owns exactly one open input stream at a time (spec §4.3). It
// converts whatever native format the backend hands it into i16 and feeds
// them into a ringbuf.Ring, runs a watchdog that notices silence, and a
// recovery loop that retries the device candidate list on failure.
type Thread struct {
	backend Backend
	devices *device.Manager
	ring    *ringbuf.Ring
	logger  Logger

	requestedName string

	state   atomic.Int32
	running atomic.Bool

	restartNeeded atomic.Bool
	lastFeed      atomic.Int64 // unix nano of last successful sample delivery

	events chan DeviceEvent

	mu     sync.Mutex
	stream Stream
	cfg    DeviceConfig

	stagingBuf []int16

	wg sync.WaitGroup
}

// Logger is the minimal logging surface Thread needs.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

func New(backend Backend, ring *ringbuf.Ring, logger Logger) *Thread {
	return &Thread{
		backend:    backend,
		devices:    device.New(backend),
		ring:       ring,
		logger:     logger,
		events:     make(chan DeviceEvent, 32),
		stagingBuf: make([]int16, stagingSampleSize),
	}
}

// Events returns the DeviceEvent stream. Closed when Stop returns.
func (t *Thread) Events() <-chan DeviceEvent { return t.events }

// State reports the current lifecycle state.
func (t *Thread) State() State { return State(t.state.Load()) }

// DeviceConfig returns the configuration of the currently open stream.
func (t *Thread) DeviceConfig() DeviceConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Start runs preflight against the requested device (then every candidate,
// then the OS default), opens the first stream that produces at least one
// frame within preflightTimeout, and launches the watchdog and recovery
// goroutines. It returns ErrFatal if no candidate produced audio.
func (t *Thread) Start(ctx context.Context, requestedName string) error {
	t.requestedName = requestedName
	t.running.Store(true)

	candidates, err := t.candidateList(requestedName)
	if err != nil {
		return fmt.Errorf("capture: building candidate list: %w", err)
	}

	for _, name := range candidates {
		if t.tryOpen(ctx, name) {
			t.state.Store(int32(StateRunning))
			t.wg.Add(2)
			go t.watchdogLoop(ctx)
			go t.recoveryLoop(ctx)
			return nil
		}
	}

	t.running.Store(false)
	return ErrFatal
}

// candidateList returns requestedName (if non-empty) followed by the
// device manager's priority-ordered names, followed by "" (OS default) as
// a last resort — spec §4.3 preflight order.
func (t *Thread) candidateList(requestedName string) ([]string, error) {
	var list []string
	if requestedName != "" {
		list = append(list, requestedName)
	}
	names, err := t.devices.CandidateNames()
	if err != nil {
		return nil, err
	}
	list = append(list, names...)
	list = append(list, "")
	return list, nil
}

// tryOpen attempts to open name and waits up to preflightTimeout for at
// least one frame to arrive. On success the stream is kept open; on
// failure it is closed and tryOpen returns false.
func (t *Thread) tryOpen(ctx context.Context, name string) bool {
	gotFrame := make(chan struct{}, 1)

	onSamples := func(format SampleFormat, raw []byte, cfg DeviceConfig) {
		n, err := convertToI16(format, raw, t.stagingBufFor(len(raw)))
		if err != nil {
			t.logger.Error("capture: unsupported sample format", "error", err)
			return
		}
		t.mu.Lock()
		t.cfg = cfg
		t.mu.Unlock()
		t.ring.Write(t.stagingBuf[:n])
		t.lastFeed.Store(time.Now().UnixNano())
		select {
		case gotFrame <- struct{}{}:
		default:
		}
	}

	stream, err := t.backend.Open(ctx, name, onSamples)
	if err != nil {
		t.logger.Warn("capture: open failed", "device", name, "error", err)
		return false
	}
	if err := stream.Start(); err != nil {
		t.logger.Warn("capture: start failed", "device", name, "error", err)
		stream.Close()
		return false
	}

	select {
	case <-gotFrame:
		t.mu.Lock()
		t.stream = stream
		t.mu.Unlock()
		t.lastFeed.Store(time.Now().UnixNano())
		return true
	case <-time.After(preflightTimeout):
		stream.Stop()
		stream.Close()
		return false
	case <-ctx.Done():
		stream.Stop()
		stream.Close()
		return false
	}
}

func (t *Thread) stagingBufFor(byteLen int) []int16 {
	need := byteLen // worst case (i16) is 1 sample per 2 bytes; oversize is fine
	if len(t.stagingBuf) < need {
		t.stagingBuf = make([]int16, need)
	}
	return t.stagingBuf
}

// watchdogLoop flags restartNeeded if no sample callback has landed within
// watchdogTimeout (spec §4.3).
func (t *Thread) watchdogLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(watchdogTimeout / 5)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.running.Load() {
				return
			}
			last := time.Unix(0, t.lastFeed.Load())
			if time.Since(last) > watchdogTimeout {
				t.restartNeeded.Store(true)
			}
		}
	}
}

// recoveryLoop stops the stream and retries the full candidate list
// whenever restartNeeded is set, emitting DeviceSwitched on success or
// DeviceSwitchFailed on exhaustion (spec §4.3).
func (t *Thread) recoveryLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.running.Load() {
				return
			}
			if !t.restartNeeded.CompareAndSwap(true, false) {
				continue
			}
			t.recover(ctx)
		}
	}
}

func (t *Thread) recover(ctx context.Context) {
	t.state.Store(int32(StateRestarting))

	t.mu.Lock()
	prev := t.stream
	t.stream = nil
	t.mu.Unlock()
	if prev != nil {
		prev.Stop()
		prev.Close()
	}

	time.Sleep(recoveryBackoff)

	candidates, err := t.candidateList(t.requestedName)
	if err != nil {
		t.emit(DeviceEvent{Type: DeviceSwitchFailed, Attempted: t.requestedName})
		return
	}

	for _, name := range candidates {
		if t.tryOpen(ctx, name) {
			t.state.Store(int32(StateRunning))
			t.emit(DeviceEvent{Type: DeviceSwitched, From: t.requestedName, To: name})
			return
		}
	}

	t.emit(DeviceEvent{Type: DeviceSwitchFailed, Attempted: t.requestedName})
	// Remain "alive but stopped" until Stop() is called (spec §4.3).
}

func (t *Thread) emit(ev DeviceEvent) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("capture: device event channel full, dropping", "type", ev.Type)
	}
}

// Stop tears the capture thread down: it stops the stream, joins the
// watchdog/recovery goroutines, and closes the event channel.
func (t *Thread) Stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	t.mu.Lock()
	stream := t.stream
	t.stream = nil
	t.mu.Unlock()
	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	t.wg.Wait()
	t.state.Store(int32(StateStopped))
	close(t.events)
}
