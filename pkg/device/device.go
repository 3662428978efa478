// Package device enumerates and selects audio input devices, and runs a
// best-effort probe of the host's sound server (PulseAudio/PipeWire/ALSA).
// It does not open streams itself — pkg/capture owns that — but it decides
// which device name pkg/capture should try, and in which order.
package device

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ErrDeviceNotFound is returned by Open when neither an exact nor a
// case-insensitive substring match exists among enumerated devices.
var ErrDeviceNotFound = errors.New("device: no matching input device found")

// Info describes one enumerated input device.
type Info struct {
	Name       string
	IsDefault  bool
	SampleRate uint32 // native rate reported by the backend, 0 if unknown
	Channels   uint16
}

// Enumerator is implemented by the audio backend (pkg/capture wires malgo
// behind this so pkg/device stays backend-agnostic and unit-testable).
type Enumerator interface {
	EnumerateInputs() ([]Info, error)
	DefaultInputName() (string, bool)
}

// Manager selects and orders candidate input devices per the priority rules
// in spec §4.2: "default" literal name, then "pipewire" literal name, then
// the OS default, then everything else in enumeration order.
type Manager struct {
	enum Enumerator
}

func New(enum Enumerator) *Manager {
	return &Manager{enum: enum}
}

// Enumerate lists every input device the backend reports.
func (m *Manager) Enumerate() ([]Info, error) {
	return m.enum.EnumerateInputs()
}

// DefaultInputName returns the OS-reported default input device name, if any.
func (m *Manager) DefaultInputName() (string, bool) {
	return m.enum.DefaultInputName()
}

// CandidateNames returns device names in the priority order pkg/capture
// should try them during preflight and recovery.
func (m *Manager) CandidateNames() ([]string, error) {
	infos, err := m.enum.EnumerateInputs()
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		names = append(names, n)
	}

	for _, info := range infos {
		if info.Name == "default" {
			add(info.Name)
		}
	}
	for _, info := range infos {
		if info.Name == "pipewire" {
			add(info.Name)
		}
	}
	if osDefault, ok := m.enum.DefaultInputName(); ok {
		add(osDefault)
	}
	for _, info := range infos {
		add(info.Name)
	}
	return names, nil
}

// Open resolves a requested device name to a concrete Info. A nil/empty
// name walks CandidateNames; a requested name is tried for an exact match
// first, then a case-insensitive substring match.
func (m *Manager) Open(name string) (Info, error) {
	infos, err := m.enum.EnumerateInputs()
	if err != nil {
		return Info{}, err
	}

	if name != "" {
		for _, info := range infos {
			if info.Name == name {
				return info, nil
			}
		}
		lower := strings.ToLower(name)
		for _, info := range infos {
			if strings.Contains(strings.ToLower(info.Name), lower) {
				return info, nil
			}
		}
		return Info{}, ErrDeviceNotFound
	}

	candidates, err := m.CandidateNames()
	if err != nil {
		return Info{}, err
	}
	byName := make(map[string]Info, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	for _, candidate := range candidates {
		if info, ok := byName[candidate]; ok {
			return info, nil
		}
	}
	if osDefault, ok := m.enum.DefaultInputName(); ok {
		if info, ok := byName[osDefault]; ok {
			return info, nil
		}
	}
	return Info{}, ErrDeviceNotFound
}

// SoundServer identifies the detected host sound server.
type SoundServer string

const (
	SoundServerPipeWire SoundServer = "pipewire"
	SoundServerPulse    SoundServer = "pulseaudio"
	SoundServerALSA     SoundServer = "alsa"
	SoundServerUnknown  SoundServer = "unknown"
)

// Probe runs a best-effort check for PipeWire, then PulseAudio, then a bare
// ALSA shim, logging warnings through the supplied logger but never
// returning an error — a missing sound server probe must never fail the
// pipeline (spec §4.2).
type Prober struct {
	logger Logger
}

// Logger is the minimal subset of pkg/telemetry.Logger this package needs,
// redeclared here so pkg/device has no dependency on pkg/telemetry.
type Logger interface {
	Warn(msg string, args ...interface{})
}

func NewProber(logger Logger) *Prober {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Prober{logger: logger}
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...interface{}) {}

// Probe shells out to well-known CLIs to identify the active sound server.
// Any failure to find a binary is swallowed; it only ever produces a
// warning log and a SoundServerUnknown result.
func (p *Prober) Probe(ctx context.Context) SoundServer {
	if p.commandSucceeds(ctx, "pw-cli", "info") {
		return SoundServerPipeWire
	}
	if p.commandSucceeds(ctx, "pactl", "info") {
		return SoundServerPulse
	}
	if p.commandSucceeds(ctx, "arecord", "-l") {
		return SoundServerALSA
	}
	p.logger.Warn("device: no known sound server responded to probe")
	return SoundServerUnknown
}

func (p *Prober) commandSucceeds(ctx context.Context, name string, args ...string) bool {
	if _, err := exec.LookPath(name); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Run(); err != nil {
		p.logger.Warn("device: probe command failed", "cmd", name, "error", err)
		return false
	}
	return true
}
