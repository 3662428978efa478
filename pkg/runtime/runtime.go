// Package runtime assembles the pipeline's independently-built packages
// into the single handle spec §4.13 describes: start/subscribe_vad/
// subscribe_transcript/set_activation_mode/shutdown.
package runtime

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldvox/coldvox/pkg/audio"
	"github.com/coldvox/coldvox/pkg/capture"
	"github.com/coldvox/coldvox/pkg/dictation"
	"github.com/coldvox/coldvox/pkg/frame"
	"github.com/coldvox/coldvox/pkg/inject"
	"github.com/coldvox/coldvox/pkg/ringbuf"
	"github.com/coldvox/coldvox/pkg/session"
	"github.com/coldvox/coldvox/pkg/stt"
	"github.com/coldvox/coldvox/pkg/telemetry"
	"github.com/coldvox/coldvox/pkg/vad"
)

// Logger matches the small logging contract shared across the pipeline.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// StartOptions configures one Start call (spec §4.13's "start(opts)").
type StartOptions struct {
	RequestedDeviceName string
	InjectAppID         string
	STTConfig           stt.TranscriptionConfig

	// SaveAudio, if true, writes each utterance's audio to OutputDir as a
	// WAV file named by its session-end timestamp (supplemented feature).
	SaveAudio bool
	OutputDir string
}

// Deps are the already-constructed collaborators Handle wires together.
// Built by the caller (normally cmd/coldvox/main.go) so each package stays
// independently testable; Handle's own job is only the glue between them.
type Deps struct {
	CaptureBackend capture.Backend
	RingCapacity   int // default 16384 samples
	Quality        frame.Quality

	VAD             *vad.Processor
	SessionMode     session.ActivationMode
	STT             *stt.Processor
	Dictation       *dictation.Session
	Injector        *inject.Orchestrator
	PipelineMetrics *telemetry.PipelineMetrics
	SttMetrics      *telemetry.SttPerformanceMetrics
	Logger          Logger
}

// Handle is the single runtime object spec §4.13 names.
type Handle struct {
	deps Deps

	ring    *ringbuf.Ring
	capture *capture.Thread
	chunker *frame.Chunker
	bcast   *frame.Broadcast
	session *session.Translator

	vadEvents        *eventBroadcast[vad.Event]
	transcriptEvents *eventBroadcast[stt.Event]

	pipelineShutdown atomic.Bool
	sttShutdown      atomic.Bool
	sttActive        atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	injectApp string
	sttConfig stt.TranscriptionConfig
	saveAudio bool
	outputDir string

	audioMu  sync.Mutex
	audioBuf []int16
}

func NewHandle(deps Deps) *Handle {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.RingCapacity == 0 {
		deps.RingCapacity = 16384
	}
	bcast := frame.NewBroadcast()
	return &Handle{
		deps:             deps,
		ring:             ringbuf.New(deps.RingCapacity),
		chunker:          frame.NewChunker(deps.Quality, bcast),
		bcast:            bcast,
		session:          session.NewTranslator(deps.SessionMode),
		vadEvents:        newEventBroadcast[vad.Event](),
		transcriptEvents: newEventBroadcast[stt.Event](),
	}
}

// Start opens the capture device and spawns the frame-reader, VAD, and
// session/STT/injection worker goroutines (spec §4.13).
func (h *Handle) Start(ctx context.Context, opts StartOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Lock()
	h.injectApp = opts.InjectAppID
	h.sttConfig = opts.STTConfig
	h.saveAudio = opts.SaveAudio
	h.outputDir = opts.OutputDir
	h.mu.Unlock()

	h.capture = capture.New(h.deps.CaptureBackend, h.ring, captureLoggerAdapter{h.deps.Logger})
	if err := h.capture.Start(ctx, opts.RequestedDeviceName); err != nil {
		return err
	}
	h.chunker.Reconfigure(h.capture.DeviceConfig().SampleRate, h.capture.DeviceConfig().Channels)

	if h.deps.STT != nil {
		h.deps.STT.StartGC()
	}

	h.wg.Add(3)
	go h.frameReaderLoop(ctx)
	go h.vadLoop(ctx)
	go h.sessionLoop(ctx)

	return nil
}

// frameReaderLoop drains the ring buffer into the chunker. The ring buffer
// has exactly one writer (the capture callback) and one reader (this
// loop), per spec §5's shared-resource policy.
func (h *Handle) frameReaderLoop(ctx context.Context) {
	defer h.wg.Done()
	staging := make([]int16, 4096)
	for {
		if h.pipelineShutdown.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		n := h.ring.ReadInto(staging)
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		h.chunker.Feed(staging[:n], time.Now())
	}
}

func (h *Handle) vadLoop(ctx context.Context) {
	defer h.wg.Done()
	sub := h.bcast.Subscribe("vad", 64)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sub:
			if !ok {
				return
			}
			if h.pipelineShutdown.Load() {
				return
			}
			if h.deps.PipelineMetrics != nil {
				h.deps.PipelineMetrics.IncFrameCount(telemetry.StageVAD)
				h.deps.PipelineMetrics.SetActive(telemetry.StageVAD, true)
			}
			if h.deps.VAD == nil {
				continue
			}
			ev := h.deps.VAD.Process(f)
			if ev == nil {
				continue
			}
			if h.deps.PipelineMetrics != nil {
				h.deps.PipelineMetrics.SetAudioLevelDB(ev.EnergyDB)
				h.deps.PipelineMetrics.SetSpeaking(ev.Type == vad.SpeechStart)
			}
			h.vadEvents.publish(*ev)
			h.session.OnVADEvent(*ev)
		}
	}
}

// sessionLoop drives STT session lifecycle from session.Translator events
// and forwards audio to the active STT plugin while a session is open.
func (h *Handle) sessionLoop(ctx context.Context) {
	defer h.wg.Done()
	sub := h.bcast.Subscribe("stt-audio", 64)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-sub:
				if !ok {
					return
				}
				if h.sttActive.Load() && !h.sttShutdown.Load() {
					h.mu.Lock()
					saveAudio := h.saveAudio
					h.mu.Unlock()
					if saveAudio {
						h.audioMu.Lock()
						h.audioBuf = append(h.audioBuf, f.Samples[:]...)
						h.audioMu.Unlock()
					}
					if h.deps.STT != nil {
						ev, err := h.deps.STT.Feed(ctx, f.Samples[:])
						if err == nil && ev != nil {
							h.transcriptEvents.publish(*ev)
						}
					}
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.session.Events():
			if !ok {
				return
			}
			h.handleSessionEvent(ctx, ev)
		}
	}
}

func (h *Handle) handleSessionEvent(ctx context.Context, ev session.Event) {
	if h.sttShutdown.Load() {
		return
	}
	switch ev.Type {
	case session.Start:
		if h.deps.STT != nil {
			h.mu.Lock()
			cfg := h.sttConfig
			h.mu.Unlock()
			if _, err := h.deps.STT.StartSession(ctx, cfg); err != nil {
				h.deps.Logger.Error("runtime: failed to start STT session", "error", err)
				return
			}
		}
		h.audioMu.Lock()
		h.audioBuf = nil
		h.audioMu.Unlock()
		h.sttActive.Store(true)
	case session.End:
		h.sttActive.Store(false)
		h.flushUtterance(ev.Instant)
		if h.deps.STT == nil {
			return
		}
		final, err := h.deps.STT.EndSession(ctx)
		if err != nil {
			h.deps.Logger.Error("runtime: STT finalize failed", "error", err)
			return
		}
		if final == nil {
			return
		}
		h.transcriptEvents.publish(*final)
		if final.Type != stt.EventFinal || h.deps.Dictation == nil {
			return
		}
		ready := h.deps.Dictation.AddFinal(final.Text, ev.Instant)
		if ready && h.deps.Injector != nil {
			text := h.deps.Dictation.TakeBuffer()
			h.mu.Lock()
			appID := h.injectApp
			h.mu.Unlock()
			h.deps.Injector.Inject(ctx, appID, text)
		}
	}
}

// flushUtterance writes the just-ended utterance's buffered samples to a
// WAV file under outputDir, named by its end timestamp (supplemented
// save-audio feature, off by default).
func (h *Handle) flushUtterance(at time.Time) {
	h.mu.Lock()
	saveAudio, outputDir := h.saveAudio, h.outputDir
	sampleRate := h.sttConfig.SampleRate
	h.mu.Unlock()
	if !saveAudio {
		return
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	h.audioMu.Lock()
	samples := h.audioBuf
	h.audioBuf = nil
	h.audioMu.Unlock()
	if len(samples) == 0 {
		return
	}

	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	wav := audio.NewWavBuffer(pcm, sampleRate)

	name := fmt.Sprintf("utterance-%s.wav", at.Format("20060102T150405.000000000"))
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		h.deps.Logger.Error("runtime: failed to save utterance audio", "path", path, "error", err)
	}
}

// SubscribeVAD returns a channel of VadEvents. Channels from calls made
// after Shutdown are already closed (spec §4.13).
func (h *Handle) SubscribeVAD() <-chan vad.Event { return h.vadEvents.subscribe(32) }

// SubscribeTranscript returns a channel of TranscriptionEvents.
func (h *Handle) SubscribeTranscript() <-chan stt.Event { return h.transcriptEvents.subscribe(32) }

// SetActivationMode switches the translator's activation mode. The mode is
// stored atomically, so this is safe to call concurrently with OnVADEvent.
// The switch applies to the next event the translator handles; it does not
// wait for an open session to end, and no End is emitted for a session
// opened under the previous mode.
func (h *Handle) SetActivationMode(mode session.ActivationMode) {
	h.session.SetMode(mode)
}

// OnHotkeyPress/OnHotkeyRelease feed hotkey-mode activation.
func (h *Handle) OnHotkeyPress(at time.Time)   { h.session.OnHotkeyPress(at) }
func (h *Handle) OnHotkeyRelease(at time.Time) { h.session.OnHotkeyRelease(at) }

// Shutdown sets the pipeline and STT shutdown flags, stops the capture
// thread (joining within 2s), drains worker goroutines, and closes every
// subscriber channel (spec §4.13).
func (h *Handle) Shutdown() {
	h.pipelineShutdown.Store(true)
	h.sttShutdown.Store(true)

	if h.capture != nil {
		done := make(chan struct{})
		go func() {
			h.capture.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			h.deps.Logger.Warn("runtime: capture thread did not stop within 2s")
		}
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.deps.STT != nil {
		h.deps.STT.Stop()
	}
	h.wg.Wait()
	h.vadEvents.closeAll()
	h.transcriptEvents.closeAll()
}

// captureLoggerAdapter adapts runtime.Logger to capture.Logger (identical
// method set, kept as distinct interfaces per-package so neither package
// depends on the other's type).
type captureLoggerAdapter struct{ l Logger }

func (a captureLoggerAdapter) Info(msg string, args ...interface{})  { a.l.Info(msg, args...) }
func (a captureLoggerAdapter) Warn(msg string, args ...interface{})  { a.l.Warn(msg, args...) }
func (a captureLoggerAdapter) Error(msg string, args ...interface{}) { a.l.Error(msg, args...) }
