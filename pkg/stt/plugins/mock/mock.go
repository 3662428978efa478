// Package mock provides a scriptable stt.Plugin for tests, following the
// teacher's hand-rolled MockSTTProvider pattern (no mocking library).
package mock

import (
	"context"
	"sync"

	"github.com/coldvox/coldvox/pkg/stt"
)

type Plugin struct {
	ID          string
	Available   bool
	ProcessErr  error
	FinalizeErr error
	FinalText   string

	mu         sync.Mutex
	samples    int
	unloaded   bool
	finalized  bool
}

func New(id string) *Plugin {
	return &Plugin{ID: id, Available: true, FinalText: "mock transcript"}
}

func (p *Plugin) Info() stt.PluginInfo {
	return stt.PluginInfo{ID: p.ID, LocalOnly: true}
}

func (p *Plugin) Capabilities() stt.PluginCapabilities {
	return stt.PluginCapabilities{Batch: true}
}

func (p *Plugin) IsAvailable(ctx context.Context) bool { return p.Available }

func (p *Plugin) Initialize(ctx context.Context, cfg stt.TranscriptionConfig) error {
	return nil
}

func (p *Plugin) ProcessAudio(ctx context.Context, samples []int16) (*stt.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProcessErr != nil {
		return nil, p.ProcessErr
	}
	p.samples += len(samples)
	return nil, nil
}

func (p *Plugin) Finalize(ctx context.Context) (*stt.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		return nil, nil
	}
	if p.FinalizeErr != nil {
		p.finalized = true
		return nil, p.FinalizeErr
	}
	p.finalized = true
	return &stt.Event{Type: stt.EventFinal, Text: p.FinalText}, nil
}

func (p *Plugin) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = 0
	p.finalized = false
}

func (p *Plugin) Unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloaded = true
}

func (p *Plugin) SamplesProcessed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}

func (p *Plugin) Unloaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unloaded
}
