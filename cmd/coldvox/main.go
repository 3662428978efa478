// Command coldvox runs the desktop voice-to-text dictation pipeline:
// capture -> VAD -> session -> STT -> dictation -> injection, wired
// together by pkg/runtime.Handle (spec §4.13).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coldvox/coldvox/pkg/capture"
	coldvoxconfig "github.com/coldvox/coldvox/pkg/config"
	"github.com/coldvox/coldvox/pkg/dictation"
	"github.com/coldvox/coldvox/pkg/frame"
	"github.com/coldvox/coldvox/pkg/inject"
	"github.com/coldvox/coldvox/pkg/inject/backends"
	coldvoxruntime "github.com/coldvox/coldvox/pkg/runtime"
	"github.com/coldvox/coldvox/pkg/session"
	"github.com/coldvox/coldvox/pkg/stt"
	"github.com/coldvox/coldvox/pkg/stt/plugins/noop"
	"github.com/coldvox/coldvox/pkg/stt/plugins/whisper"
	"github.com/coldvox/coldvox/pkg/telemetry"
	"github.com/coldvox/coldvox/pkg/vad"
)

// Exit codes per spec §6.
const (
	exitOK             = 0
	exitConfigError    = 2
	exitFatalAudio     = 3
	exitFatalModelLoad = 4
	exitInterrupted    = 130
)

// appLogger is the small shared logging contract every package in this
// module accepts, backed by the standard logger the same way the
// teacher's cmd/agent logs via plain log.Println/log.Fatal.
type appLogger struct{ *log.Logger }

func (l appLogger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l appLogger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l appLogger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l appLogger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }

// log renders msg followed by its key/value pairs, matching the
// structured-field convention the pipeline packages already call their
// Logger interfaces with (alternating key, value arguments after msg).
func (l appLogger) log(level, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		msg += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	l.Printf("%-5s %s", level, msg)
}

func main() {
	os.Exit(run())
}

func run() int {
	logger := appLogger{log.New(os.Stderr, "coldvox: ", log.LstdFlags)}

	cfg, err := coldvoxconfig.Load(os.Args[1:])
	if err != nil {
		logger.Error("config: failed to resolve configuration", "error", err)
		return exitConfigError
	}

	captureBackend, err := capture.NewMalgoBackend()
	if err != nil {
		logger.Error("audio: failed to initialize capture backend", "error", err)
		return exitFatalAudio
	}
	defer captureBackend.Close()

	sttRegistry, err := buildSTTRegistry(cfg, logger)
	if err != nil {
		logger.Error("stt: failed to build plugin registry", "error", err)
		return exitFatalModelLoad
	}
	sttProcessor := stt.NewProcessor(sttRegistry, cfg.STTPlugin, stt.DefaultFailoverConfig(), stt.DefaultGCConfig(), logger)

	vadProcessor := vad.NewProcessor(vad.NewEnergyDetector(), vad.Config{
		Threshold:    float64(cfg.VADThreshold),
		MinSpeechMs:  time.Duration(cfg.MinSpeechMs) * time.Millisecond,
		MinSilenceMs: time.Duration(cfg.MinSilenceMs) * time.Millisecond,
	})

	sessionMode := session.ActivationVAD
	if cfg.Activation == coldvoxconfig.ActivationHotkey {
		sessionMode = session.ActivationHotkey
	}

	dictationSession := dictation.New(dictation.DefaultConfig(), logger)

	pipelineMetrics := telemetry.NewPipelineMetrics()
	sttMetrics := telemetry.NewSttPerformanceMetrics()

	injector := buildInjector(cfg, logger)

	handle := coldvoxruntime.NewHandle(coldvoxruntime.Deps{
		CaptureBackend:  captureBackend,
		Quality:         frame.Balanced,
		VAD:             vadProcessor,
		SessionMode:     sessionMode,
		STT:             sttProcessor,
		Dictation:       dictationSession,
		Injector:        injector,
		PipelineMetrics: pipelineMetrics,
		SttMetrics:      sttMetrics,
		Logger:          logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.NoInjection {
		logger.Info("injection disabled via --no-injection/COLDVOX_NO_INJECTION")
	}

	startOpts := coldvoxruntime.StartOptions{
		RequestedDeviceName: cfg.Device,
		STTConfig: stt.TranscriptionConfig{
			SampleRate: 16000,
			ModelPath:  cfg.WhisperModelPath,
		},
		SaveAudio: cfg.SaveAudio,
		OutputDir: cfg.OutputDir,
	}
	if err := handle.Start(ctx, startOpts); err != nil {
		logger.Error("audio: failed to start capture", "error", err)
		return exitFatalAudio
	}

	fmt.Println("coldvox: listening; press Ctrl+C to exit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\ncoldvox: shutting down...")
	handle.Shutdown()
	return exitInterrupted
}

// buildSTTRegistry registers the whisper-server plugin (spec §4.7's local
// batch plugin) behind the NoOp terminal fallback, ordered by the
// configured fallback list.
func buildSTTRegistry(cfg coldvoxconfig.Config, logger appLogger) (*stt.Registry, error) {
	registry := stt.NewRegistry(noop.New(logger), cfg.STTFallback)

	serverURL := os.Getenv("WHISPER_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	whisperPlugin := whisper.New(serverURL)
	if cfg.WhisperModelSize != "" {
		whisperPlugin.SetModel(cfg.WhisperModelSize)
	}
	registry.Register(whisperPlugin)

	return registry, nil
}

// buildInjector detects the desktop environment and wires every backend
// that can plausibly run on this machine (spec §4.9-§4.10); backends that
// can't be constructed (e.g. no accessibility bus) are logged and skipped
// rather than failing startup, since injection degrades gracefully to
// clipboard-only/NoOp.
func buildInjector(cfg coldvoxconfig.Config, logger appLogger) *inject.Orchestrator {
	env := inject.Detect(runtime.GOOS, inject.EnvVars{
		XDGSessionType:            os.Getenv("XDG_SESSION_TYPE"),
		WaylandDisplay:            os.Getenv("WAYLAND_DISPLAY"),
		Display:                   os.Getenv("DISPLAY"),
		XDGCurrentDesktop:         os.Getenv("XDG_CURRENT_DESKTOP"),
		KDESessionVersion:         os.Getenv("KDE_SESSION_VERSION"),
		HyprlandInstanceSignature: os.Getenv("HYPRLAND_INSTANCE_SIGNATURE"),
	})

	var backendList []inject.Backend

	if focus, err := backends.NewAtspiFocusFinder(); err != nil {
		logger.Warn("inject: AT-SPI unavailable", "error", err)
	} else {
		backendList = append(backendList, backends.NewAtspiInsert(nil, focus))
	}

	pasteCmd := os.Getenv("COLDVOX_PASTE_CMD")
	if pasteCmd == "" {
		pasteCmd = "xdotool"
	}
	pasteSender := backends.NewExecPasteSender(pasteCmd, "key", "ctrl+v")
	backendList = append(backendList,
		backends.NewClipboardAndPaste(backends.SystemClipboard, pasteSender),
		backends.NewClipboardPasteFallback(backends.SystemClipboard, pasteSender),
		backends.NewClipboardOnly(backends.SystemClipboard),
	)

	allowSynthetic := os.Getenv("COLDVOX_ALLOW_SYNTHETIC_INPUT") != ""
	backendList = append(backendList,
		backends.NewYdotool(allowSynthetic),
		backends.NewKdotool(allowSynthetic),
		backends.Enigo{Allow: false},
		backends.NoOp{Logger: logger},
	)

	if cfg.NoInjection {
		backendList = []inject.Backend{backends.NoOp{Logger: logger}}
	}

	return inject.NewOrchestrator(env, backendList, inject.DefaultBudgets(), inject.DefaultCooldownConfig(), inject.AppGate{}, logger)
}
