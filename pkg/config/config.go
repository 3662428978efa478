// Package config resolves runtime configuration from, in ascending
// precedence: a .env file, process environment variables, then CLI flags
// (spec §6's external interface surface).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Activation mirrors session.ActivationMode's two observable modes as a
// plain string so the config package doesn't need to import pkg/session.
type Activation string

const (
	ActivationVAD    Activation = "vad"
	ActivationHotkey Activation = "hotkey"
)

// Config is the fully resolved runtime configuration (spec §6 CLI surface).
type Config struct {
	Device       string
	Activation   Activation
	STTPlugin    string
	STTFallback  []string
	NoInjection  bool
	SaveAudio    bool
	OutputDir    string
	VADThreshold float32
	MinSpeechMs  int
	MinSilenceMs int
	LogLevel     string

	// Plugin tuning env vars (spec §6).
	WhisperModelPath   string
	WhisperModelSize   string
	ParakeetVariant    string
	ParakeetDevice     string
	MoonshineModel     string
	MoonshineModelPath string
}

func defaults() Config {
	return Config{
		Activation:   ActivationVAD,
		STTPlugin:    "whisper",
		OutputDir:    ".",
		VADThreshold: 0.5,
		MinSpeechMs:  100,
		MinSilenceMs: 300,
		LogLevel:     "info",
	}
}

// Load resolves configuration from .env (if present), the process
// environment, then CLI flags, in that ascending precedence order — each
// later source overrides the earlier ones for any value it sets
// explicitly. args is normally os.Args[1:].
func Load(args []string) (Config, error) {
	// .env populates process env vars that aren't already set; godotenv
	// never overrides an existing env var, which is exactly the "lowest
	// precedence" behavior this layering needs.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnv(&cfg)

	fs := pflag.NewFlagSet("coldvox", pflag.ContinueOnError)
	device := fs.String("device", cfg.Device, "preferred input device name")
	activation := fs.String("activation", string(cfg.Activation), "activation mode: vad|hotkey")
	sttPlugin := fs.String("stt-plugin", cfg.STTPlugin, "preferred STT plugin id")
	sttFallback := fs.String("stt-fallback", "", "comma-separated STT plugin fallback order")
	noInjection := fs.Bool("no-injection", cfg.NoInjection, "disable text injection")
	saveAudio := fs.Bool("save-audio", cfg.SaveAudio, "persist per-utterance WAV files")
	outputDir := fs.String("output-dir", cfg.OutputDir, "directory for saved audio/transcripts")
	vadThreshold := fs.Float32("vad-threshold", cfg.VADThreshold, "VAD speech probability threshold")
	minSpeechMs := fs.Int("min-speech-ms", cfg.MinSpeechMs, "minimum consecutive speech duration to confirm SpeechStart")
	minSilenceMs := fs.Int("min-silence-ms", cfg.MinSilenceMs, "minimum consecutive silence duration to confirm SpeechEnd")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if fs.Changed("device") {
		cfg.Device = *device
	}
	if fs.Changed("activation") {
		cfg.Activation = Activation(*activation)
	}
	if fs.Changed("stt-plugin") {
		cfg.STTPlugin = *sttPlugin
	}
	if fs.Changed("stt-fallback") {
		cfg.STTFallback = splitCSV(*sttFallback)
	}
	if fs.Changed("no-injection") {
		cfg.NoInjection = *noInjection
	}
	if fs.Changed("save-audio") {
		cfg.SaveAudio = *saveAudio
	}
	if fs.Changed("output-dir") {
		cfg.OutputDir = *outputDir
	}
	if fs.Changed("vad-threshold") {
		cfg.VADThreshold = *vadThreshold
	}
	if fs.Changed("min-speech-ms") {
		cfg.MinSpeechMs = *minSpeechMs
	}
	if fs.Changed("min-silence-ms") {
		cfg.MinSilenceMs = *minSilenceMs
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COLDVOX_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := os.Getenv("COLDVOX_ACTIVATION"); v != "" {
		cfg.Activation = Activation(v)
	}
	if v := os.Getenv("COLDVOX_STT_PLUGIN"); v != "" {
		cfg.STTPlugin = v
	}
	if v := os.Getenv("COLDVOX_STT_FALLBACK"); v != "" {
		cfg.STTFallback = splitCSV(v)
	}
	if v := os.Getenv("COLDVOX_NO_INJECTION"); v != "" {
		cfg.NoInjection = parseBool(v, cfg.NoInjection)
	}
	if v := os.Getenv("COLDVOX_SAVE_AUDIO"); v != "" {
		cfg.SaveAudio = parseBool(v, cfg.SaveAudio)
	}
	if v := os.Getenv("COLDVOX_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("COLDVOX_VAD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.VADThreshold = float32(f)
		}
	}
	if v := os.Getenv("COLDVOX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.WhisperModelPath = os.Getenv("WHISPER_MODEL_PATH")
	cfg.WhisperModelSize = os.Getenv("WHISPER_MODEL_SIZE")
	cfg.ParakeetVariant = os.Getenv("PARAKEET_VARIANT")
	cfg.ParakeetDevice = os.Getenv("PARAKEET_DEVICE")
	cfg.MoonshineModel = os.Getenv("MOONSHINE_MODEL")
	cfg.MoonshineModelPath = os.Getenv("MOONSHINE_MODEL_PATH")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// IsHeadlessForced reports the test/CI override env vars that force the
// audio subsystem into a headless, device-less mode (spec §6).
func IsHeadlessForced() bool {
	return os.Getenv("COLDVOX_AUDIO_FORCE_HEADLESS") != "" ||
		os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != ""
}
