package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Activation != ActivationVAD || cfg.STTPlugin != "whisper" || cfg.MinSpeechMs != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadCLIFlagsOverrideDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load([]string{"--activation", "hotkey", "--stt-plugin", "mock", "--no-injection"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Activation != ActivationHotkey || cfg.STTPlugin != "mock" || !cfg.NoInjection {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvVarsOverrideDefaultsButCLIWins(t *testing.T) {
	clearEnv(t)
	os.Setenv("COLDVOX_ACTIVATION", "hotkey")
	os.Setenv("COLDVOX_STT_PLUGIN", "env-plugin")
	defer clearEnv(t)

	cfg, err := Load([]string{"--stt-plugin", "cli-plugin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Activation != ActivationHotkey {
		t.Fatalf("expected env var to set activation, got %v", cfg.Activation)
	}
	if cfg.STTPlugin != "cli-plugin" {
		t.Fatalf("expected CLI flag to win over env var, got %v", cfg.STTPlugin)
	}
}

func TestLoadSTTFallbackSplitsCSV(t *testing.T) {
	clearEnv(t)
	cfg, err := Load([]string{"--stt-fallback", "whisper,mock,noop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.STTFallback) != 3 || cfg.STTFallback[1] != "mock" {
		t.Fatalf("unexpected fallback list: %v", cfg.STTFallback)
	}
}

func TestIsHeadlessForcedByCI(t *testing.T) {
	clearEnv(t)
	os.Setenv("CI", "true")
	defer clearEnv(t)
	if !IsHeadlessForced() {
		t.Fatal("expected headless forced when CI=true")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"COLDVOX_DEVICE", "COLDVOX_ACTIVATION", "COLDVOX_STT_PLUGIN", "COLDVOX_STT_FALLBACK",
		"COLDVOX_NO_INJECTION", "COLDVOX_SAVE_AUDIO", "COLDVOX_OUTPUT_DIR", "COLDVOX_VAD_THRESHOLD",
		"COLDVOX_LOG_LEVEL", "CI", "GITHUB_ACTIONS", "COLDVOX_AUDIO_FORCE_HEADLESS",
	} {
		os.Unsetenv(k)
	}
}
