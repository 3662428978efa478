package inject

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Method identifies an injection strategy (spec §4.10).
type Method string

const (
	MethodAtspiInsert            Method = "atspi_insert"
	MethodClipboardAndPaste      Method = "clipboard_and_paste"
	MethodClipboardPasteFallback Method = "clipboard_paste_fallback"
	MethodClipboardOnly          Method = "clipboard_only"
	MethodYdotool                Method = "ydotool"
	MethodEnigo                  Method = "enigo"
	MethodKdotool                Method = "kdotool"
	MethodNoOp                   Method = "noop"
)

// FailureKind classifies why a backend call did not succeed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNoEditableFocus
	FailureTimeout
	FailureOther
	FailureNotAllowed
)

// Result is what a Backend.Inject call reports.
type Result struct {
	Method  Method
	Ok      bool
	Kind    FailureKind
	Err     error
	Elapsed time.Duration
}

// Backend performs one injection strategy.
type Backend interface {
	Method() Method
	Available(ctx context.Context) bool
	Inject(ctx context.Context, text string) Result
}

// Budgets are the fast-fail timing limits (spec §4.10).
type Budgets struct {
	Total        time.Duration
	PerStage     time.Duration
	Confirmation time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		Total:        500 * time.Millisecond,
		PerStage:     50 * time.Millisecond,
		Confirmation: 75 * time.Millisecond,
	}
}

// CooldownConfig controls exponential backoff after repeated failures of a
// given (app, method) pair.
type CooldownConfig struct {
	InitialMs time.Duration
	Factor    float64
	MaxMs     time.Duration
}

func DefaultCooldownConfig() CooldownConfig {
	return CooldownConfig{InitialMs: 250 * time.Millisecond, Factor: 2.0, MaxMs: 30 * time.Second}
}

type recordKey struct {
	appID  string
	method Method
}

// SuccessRecord tracks the historical success rate and cooldown state for
// one (app, method) pair.
type SuccessRecord struct {
	Attempts   int
	Successes  int
	Level      int // cooldown backoff level, reset to 0 on success
	CooldownTo time.Time
}

func (r *SuccessRecord) successRate() float64 {
	if r.Attempts == 0 {
		return 0.5 // unknown — neutral prior, neither favored nor penalized
	}
	return float64(r.Successes) / float64(r.Attempts)
}

func (r *SuccessRecord) inCooldown(now time.Time) bool {
	return now.Before(r.CooldownTo)
}

// AppGate allows/blocks injection by application id via substring or regex.
type AppGate struct {
	Allow []string
	Block []string
}

func (g AppGate) permits(appID string) bool {
	if appID == "" {
		return true
	}
	for _, pat := range g.Block {
		if matchGate(pat, appID) {
			return false
		}
	}
	if len(g.Allow) == 0 {
		return true
	}
	for _, pat := range g.Allow {
		if matchGate(pat, appID) {
			return true
		}
	}
	return false
}

func matchGate(pattern, appID string) bool {
	if re, err := regexp.Compile(pattern); err == nil {
		if re.MatchString(appID) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(appID), strings.ToLower(pattern))
}

// strategyOrder is the default per-environment method ordering (spec §4.9,
// §4.10): AT-SPI first where it is known reliable, then ClipboardAndPaste,
// then the plain Clipboard fallback, then any opt-in synthetic-input
// backend last (only once clipboard-based methods have been exhausted),
// with NoOp as the terminal catch-all.
var strategyOrder = map[DesktopEnvironment][]Method{
	KdeWayland:   {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodKdotool, MethodNoOp},
	KdeX11:       {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodYdotool, MethodNoOp},
	Hyprland:     {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodYdotool, MethodNoOp},
	GnomeWayland: {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodNoOp},
	GnomeX11:     {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodEnigo, MethodNoOp},
	OtherWayland: {MethodClipboardAndPaste, MethodClipboardOnly, MethodYdotool, MethodNoOp},
	OtherX11:     {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardOnly, MethodEnigo, MethodNoOp},
	Windows:      {MethodClipboardAndPaste, MethodClipboardPasteFallback, MethodEnigo, MethodNoOp},
	MacOS:        {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardPasteFallback, MethodNoOp},
	Unknown:      {MethodAtspiInsert, MethodClipboardAndPaste, MethodClipboardPasteFallback, MethodNoOp},
}

// Logger matches the small logging contract used across the pipeline.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// Orchestrator selects and drives injection backends per spec §4.9-§4.10.
type Orchestrator struct {
	env      DesktopEnvironment
	backends map[Method]Backend
	budgets  Budgets
	cooldown CooldownConfig
	gate     AppGate
	logger   Logger

	mu      sync.Mutex
	records map[recordKey]*SuccessRecord

	prewarm *prewarmCache
}

func NewOrchestrator(env DesktopEnvironment, backends []Backend, budgets Budgets, cooldown CooldownConfig, gate AppGate, logger Logger) *Orchestrator {
	m := make(map[Method]Backend, len(backends))
	for _, b := range backends {
		m[b.Method()] = b
	}
	return &Orchestrator{
		env:      env,
		backends: m,
		budgets:  budgets,
		cooldown: cooldown,
		gate:     gate,
		logger:   logger,
		records:  make(map[recordKey]*SuccessRecord),
		prewarm:  newPrewarmCache(3 * time.Second),
	}
}

func (o *Orchestrator) recordFor(appID string, method Method) *SuccessRecord {
	key := recordKey{appID: appID, method: method}
	r, ok := o.records[key]
	if !ok {
		r = &SuccessRecord{}
		o.records[key] = r
	}
	return r
}

// candidates returns the ordered, gated, non-cooldown method list for appID,
// ranked by descending success rate (stable — ties keep strategyOrder's
// relative order, spec §4.10).
func (o *Orchestrator) candidates(appID string, now time.Time) []Method {
	order, ok := strategyOrder[o.env]
	if !ok {
		order = strategyOrder[Unknown]
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	type scored struct {
		method Method
		rate   float64
	}
	var out []scored
	for _, m := range order {
		if _, present := o.backends[m]; !present && m != MethodNoOp {
			continue
		}
		if !o.gate.permits(appID) {
			continue
		}
		rec := o.recordFor(appID, m)
		if rec.inCooldown(now) {
			continue
		}
		out = append(out, scored{method: m, rate: rec.successRate()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rate > out[j].rate })

	methods := make([]Method, len(out))
	for i, s := range out {
		methods[i] = s.method
	}
	return methods
}

// Inject tries candidate methods in order until one succeeds or the total
// budget is exhausted; each attempt is bounded by PerStage. An app the
// gate does not permit gets FailureNotAllowed without any method being tried.
func (o *Orchestrator) Inject(ctx context.Context, appID, text string) Result {
	if !o.gate.permits(appID) {
		return Result{Kind: FailureNotAllowed, Err: errors.New("inject: app not allowed: " + appID)}
	}
	deadline := time.Now().Add(o.budgets.Total)
	var last Result

	for _, method := range o.candidates(appID, time.Now()) {
		if time.Now().After(deadline) {
			break
		}
		backend, ok := o.backends[method]
		if !ok {
			if method == MethodNoOp {
				backend = noOpBackend{}
			} else {
				continue
			}
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.budgets.PerStage)
		if remaining := time.Until(deadline); remaining < o.budgets.PerStage {
			stageCtx, cancel = context.WithTimeout(ctx, remaining)
		}
		if !backend.Available(stageCtx) {
			cancel()
			continue
		}

		start := time.Now()
		res := backend.Inject(stageCtx, text)
		cancel()
		res.Elapsed = time.Since(start)
		res.Method = method

		o.record(appID, method, res.Ok, time.Now())
		last = res
		if res.Ok {
			return res
		}
		if o.logger != nil {
			o.logger.Warn("inject: strategy failed", "method", string(method), "app_id", appID)
		}
	}
	return last
}

func (o *Orchestrator) record(appID string, method Method, ok bool, now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec := o.recordFor(appID, method)
	rec.Attempts++
	if ok {
		rec.Successes++
		rec.Level = 0
		rec.CooldownTo = time.Time{}
		return
	}
	backoff := o.cooldown.InitialMs
	for i := 0; i < rec.Level; i++ {
		backoff = time.Duration(float64(backoff) * o.cooldown.Factor)
		if backoff > o.cooldown.MaxMs {
			backoff = o.cooldown.MaxMs
			break
		}
	}
	rec.Level++
	rec.CooldownTo = now.Add(backoff)
}

// PreWarm asks a backend to ready itself (e.g. open a D-Bus connection)
// ahead of the first real injection, without blocking the caller and
// without repeating within the cache TTL.
func (o *Orchestrator) PreWarm(ctx context.Context, appID string, method Method) {
	if !o.prewarm.shouldRun(method, appID) {
		return
	}
	backend, ok := o.backends[method]
	if !ok {
		return
	}
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), o.budgets.PerStage)
		defer cancel()
		backend.Available(warmCtx)
		_ = ctx
	}()
}

type prewarmKey struct {
	method Method
	appID  string
}

type prewarmCache struct {
	ttl time.Duration
	mu  sync.Mutex
	at  map[prewarmKey]time.Time
}

func newPrewarmCache(ttl time.Duration) *prewarmCache {
	return &prewarmCache{ttl: ttl, at: make(map[prewarmKey]time.Time)}
}

func (c *prewarmCache) shouldRun(method Method, appID string) bool {
	key := prewarmKey{method: method, appID: appID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.at[key]; ok && time.Since(last) < c.ttl {
		return false
	}
	c.at[key] = time.Now()
	return true
}

// noOpBackend is the terminal fallback: always available, always "succeeds"
// by discarding the text; it does not log.
type noOpBackend struct{}

func (noOpBackend) Method() Method                              { return MethodNoOp }
func (noOpBackend) Available(ctx context.Context) bool          { return true }
func (noOpBackend) Inject(ctx context.Context, text string) Result {
	return Result{Method: MethodNoOp, Ok: true, Kind: FailureNone}
}
