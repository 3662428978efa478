// Package stt runs a pluggable speech-to-text engine per utterance: a
// registry selects a plugin (preferred, then fallback order, then NoOp),
// and a Processor drives its per-session lifecycle and failover
// (spec §4.7).
package stt

import (
	"context"
	"errors"
)

// PluginInfo is pure, cheap metadata a plugin reports about itself.
type PluginInfo struct {
	ID        string
	LocalOnly bool
	Languages []string
	// MemoryEstimateMB is an advisory figure used by the registry/GC when
	// deciding what to keep resident.
	MemoryEstimateMB int
}

// PluginCapabilities describes what a plugin can do.
type PluginCapabilities struct {
	Streaming       bool
	Batch           bool
	WordTimestamps  bool
	Confidence      bool
}

// Language mirrors the teacher's BCP-47-ish Language type
// (pkg/orchestrator/types.go), reused here for TranscriptionConfig.
type Language string

// TranscriptionConfig is passed to Plugin.Initialize.
type TranscriptionConfig struct {
	Language   Language
	SampleRate int
	ModelPath  string // local plugins only
	ServerURL  string // network plugins only (e.g. whisper-server)
}

// EventType tags TranscriptionEvent (spec §3).
type EventType string

const (
	EventPartial EventType = "PARTIAL"
	EventFinal   EventType = "FINAL"
	EventError   EventType = "ERROR"
)

// Event is the tagged Partial/Final/Error variant from spec §3.
type Event struct {
	Type        EventType
	UtteranceID uint64
	Text        string
	Words       []Word
	T0, T1      float64 // seconds, optional (Partial)
	Code        string  // Error only
	Message     string  // Error only
}

type Word struct {
	Text       string
	StartMs    uint32
	EndMs      uint32
	Confidence float32
}

var (
	ErrLoadFailed          = errors.New("stt: plugin failed to load")
	ErrTranscriptionFailed = errors.New("stt: transcription failed")
	ErrNotAvailable        = errors.New("stt: plugin not available")
)

// Plugin is the contract every STT backend implements (spec §4.7).
type Plugin interface {
	Info() PluginInfo
	Capabilities() PluginCapabilities
	IsAvailable(ctx context.Context) bool
	Initialize(ctx context.Context, cfg TranscriptionConfig) error
	// ProcessAudio may return a non-nil *Event for streaming plugins that
	// produce Partials; batch plugins typically return (nil, nil) here and
	// produce their only Event from Finalize.
	ProcessAudio(ctx context.Context, samples []int16) (*Event, error)
	// Finalize produces the Final for the current utterance. Must be
	// idempotent after it has produced one: subsequent calls return nil.
	Finalize(ctx context.Context) (*Event, error)
	// Reset clears per-utterance state without unloading the model.
	Reset()
	// Unload releases heavyweight resources (model weights, HTTP clients).
	Unload()
}
