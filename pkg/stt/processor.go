package stt

import (
	"context"
	"sync"
	"time"
)

// FailoverConfig controls when a misbehaving plugin is unloaded and
// replaced, per spec §4.7.
type FailoverConfig struct {
	MaxFailuresInWindow int
	ReplayOnSwitch      bool
	MaxReplaySamples    int
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{MaxFailuresInWindow: 3, ReplayOnSwitch: true, MaxReplaySamples: 16000 * 5}
}

// GCConfig controls the idle-plugin unload timer, per spec §4.7.
type GCConfig struct {
	Interval time.Duration
	MaxIdle  time.Duration
}

func DefaultGCConfig() GCConfig {
	return GCConfig{Interval: 30 * time.Second, MaxIdle: 5 * time.Minute}
}

type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Processor drives one STT session's lifecycle: plugin selection,
// per-utterance reset/finalize, failover on repeated errors, and an idle
// plugin GC timer (spec §4.7).
type Processor struct {
	registry  *Registry
	failover  FailoverConfig
	gc        GCConfig
	logger    Logger
	preferred string

	mu          sync.Mutex
	active      Plugin
	utteranceID uint64
	failures    map[string]int
	lastUsed    map[string]time.Time

	replayBuf []int16
	finalized bool

	stopGC chan struct{}
}

func NewProcessor(registry *Registry, preferred string, failover FailoverConfig, gc GCConfig, logger Logger) *Processor {
	return &Processor{
		registry:  registry,
		failover:  failover,
		gc:        gc,
		logger:    logger,
		preferred: preferred,
		failures:  make(map[string]int),
		lastUsed:  make(map[string]time.Time),
	}
}

// StartGC launches the idle-plugin collector; call Stop to end it.
func (p *Processor) StartGC() {
	p.stopGC = make(chan struct{})
	go p.gcLoop()
}

func (p *Processor) Stop() {
	if p.stopGC != nil {
		close(p.stopGC)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		p.active.Unload()
		p.active = nil
	}
}

func (p *Processor) gcLoop() {
	ticker := time.NewTicker(p.gc.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopGC:
			return
		case <-ticker.C:
			p.collectIdle()
		}
	}
}

func (p *Processor) collectIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, plugin := range p.registry.All() {
		id := plugin.Info().ID
		if p.active != nil && p.active.Info().ID == id {
			continue
		}
		last, ok := p.lastUsed[id]
		if !ok {
			continue
		}
		if now.Sub(last) > p.gc.MaxIdle {
			plugin.Unload()
			delete(p.lastUsed, id)
		}
	}
}

// StartSession ensures a plugin is selected and initialized, resets its
// per-utterance state, and allocates the next utterance_id (spec §4.7
// "On Session::Start").
func (p *Processor) StartSession(ctx context.Context, cfg TranscriptionConfig) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		p.active = p.registry.Select(ctx, p.preferred)
		if err := p.active.Initialize(ctx, cfg); err != nil {
			p.logger.Error("stt: plugin initialize failed", "plugin", p.active.Info().ID, "error", err)
		}
	}
	p.active.Reset()
	p.utteranceID++
	p.finalized = false
	p.replayBuf = p.replayBuf[:0]
	p.lastUsed[p.active.Info().ID] = time.Now()
	return p.utteranceID, nil
}

// Feed forwards samples to the active plugin, buffering for replay if
// configured, and returns any Event the plugin produced.
func (p *Processor) Feed(ctx context.Context, samples []int16) (*Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failover.ReplayOnSwitch {
		p.bufferForReplay(samples)
	}

	ev, err := p.active.ProcessAudio(ctx, samples)
	if err != nil {
		p.onFailure(ctx)
		return nil, err
	}
	p.lastUsed[p.active.Info().ID] = time.Now()
	if ev != nil {
		ev.UtteranceID = p.utteranceID
	}
	return ev, nil
}

func (p *Processor) bufferForReplay(samples []int16) {
	p.replayBuf = append(p.replayBuf, samples...)
	if over := len(p.replayBuf) - p.failover.MaxReplaySamples; over > 0 {
		p.replayBuf = p.replayBuf[over:]
	}
}

// onFailure increments the active plugin's failure counter and, once it
// crosses the threshold, unloads it, re-selects per the fallback order,
// and replays buffered audio into the new plugin (spec §4.7). It reports
// whether a failover actually happened, so callers finalizing a session
// know whether there's a freshly re-driven plugin to finalize instead.
func (p *Processor) onFailure(ctx context.Context) bool {
	id := p.active.Info().ID
	p.failures[id]++
	if p.failures[id] < p.failover.MaxFailuresInWindow {
		return false
	}

	p.logger.Warn("stt: plugin exceeded failure threshold, failing over", "plugin", id)
	failed := p.active
	failed.Unload()
	delete(p.failures, id)

	p.active = p.registry.SelectExcluding(ctx, p.preferred, id)
	if err := p.active.Initialize(ctx, TranscriptionConfig{}); err != nil {
		p.logger.Error("stt: failover plugin initialize failed", "plugin", p.active.Info().ID, "error", err)
	}
	p.active.Reset()

	if p.failover.ReplayOnSwitch && len(p.replayBuf) > 0 {
		if _, err := p.active.ProcessAudio(ctx, p.replayBuf); err != nil {
			p.logger.Warn("stt: replay after failover failed", "plugin", p.active.Info().ID, "error", err)
		}
	}
	return true
}

// EndSession finalizes the current utterance. Finalize is idempotent per
// the Plugin contract: a second call returns nil.
func (p *Processor) EndSession(ctx context.Context) (*Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finalized {
		return nil, nil
	}
	ev, err := p.active.Finalize(ctx)
	p.finalized = true
	if err != nil {
		if !p.onFailure(ctx) {
			return nil, err
		}
		// Failover replayed the buffered utterance into the new plugin;
		// finalize it so its Final is what surfaces (spec §4.7 re-drive).
		fev, ferr := p.active.Finalize(ctx)
		if ferr != nil {
			return nil, ferr
		}
		if fev != nil {
			fev.UtteranceID = p.utteranceID
		}
		return fev, nil
	}
	if ev != nil {
		ev.UtteranceID = p.utteranceID
	}
	return ev, nil
}

// ActivePluginID reports which plugin is currently selected, for telemetry.
func (p *Processor) ActivePluginID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return ""
	}
	return p.active.Info().ID
}
