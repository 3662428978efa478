// Package noop implements the STT registry's last-resort fallback: it
// logs and discards audio rather than failing the pipeline (spec §4.7).
package noop

import (
	"context"

	"github.com/coldvox/coldvox/pkg/stt"
)

type Logger interface {
	Warn(msg string, args ...interface{})
}

type Plugin struct {
	logger Logger
}

func New(logger Logger) *Plugin {
	return &Plugin{logger: logger}
}

func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{ID: "noop", LocalOnly: true}
}

func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{}
}

func (p *Plugin) IsAvailable(ctx context.Context) bool { return true }

func (p *Plugin) Initialize(ctx context.Context, cfg stt.TranscriptionConfig) error {
	return nil
}

func (p *Plugin) ProcessAudio(ctx context.Context, samples []int16) (*stt.Event, error) {
	if p.logger != nil {
		p.logger.Warn("stt: no plugin available, discarding audio", "samples", len(samples))
	}
	return nil, nil
}

func (p *Plugin) Finalize(ctx context.Context) (*stt.Event, error) { return nil, nil }
func (p *Plugin) Reset()                                          {}
func (p *Plugin) Unload()                                         {}
