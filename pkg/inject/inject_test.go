package inject

import (
	"context"
	"testing"
	"time"
)

type fakeBackend struct {
	method    Method
	available bool
	ok        bool
	kind      FailureKind
	calls     int
}

func (f *fakeBackend) Method() Method                     { return f.method }
func (f *fakeBackend) Available(ctx context.Context) bool { return f.available }
func (f *fakeBackend) Inject(ctx context.Context, text string) Result {
	f.calls++
	return Result{Method: f.method, Ok: f.ok, Kind: f.kind}
}

func TestInjectUsesFirstSucceedingStrategy(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: true}
	clip := &fakeBackend{method: MethodClipboardAndPaste, available: true, ok: true}
	o := NewOrchestrator(KdeWayland, []Backend{atspi, clip}, DefaultBudgets(), DefaultCooldownConfig(), AppGate{}, nil)

	res := o.Inject(context.Background(), "app", "hello")
	if !res.Ok || res.Method != MethodAtspiInsert {
		t.Fatalf("expected atspi success, got %+v", res)
	}
	if clip.calls != 0 {
		t.Fatalf("expected clipboard backend not called, got %d calls", clip.calls)
	}
}

func TestInjectFallsThroughOnFailure(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: false, kind: FailureNoEditableFocus}
	clip := &fakeBackend{method: MethodClipboardAndPaste, available: true, ok: true}
	o := NewOrchestrator(KdeWayland, []Backend{atspi, clip}, DefaultBudgets(), DefaultCooldownConfig(), AppGate{}, nil)

	res := o.Inject(context.Background(), "app", "hello")
	if !res.Ok || res.Method != MethodClipboardAndPaste {
		t.Fatalf("expected fallback to clipboard, got %+v", res)
	}
}

func TestInjectFallsBackToNoOpWhenAllFail(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: false}
	o := NewOrchestrator(Unknown, []Backend{atspi}, DefaultBudgets(), DefaultCooldownConfig(), AppGate{}, nil)

	res := o.Inject(context.Background(), "app", "hello")
	if !res.Ok || res.Method != MethodNoOp {
		t.Fatalf("expected noop terminal fallback, got %+v", res)
	}
}

func TestCooldownExcludesRepeatedlyFailingMethod(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: false}
	clip := &fakeBackend{method: MethodClipboardAndPaste, available: true, ok: true}
	cooldown := CooldownConfig{InitialMs: time.Hour, Factor: 2, MaxMs: time.Hour}
	o := NewOrchestrator(KdeWayland, []Backend{atspi, clip}, DefaultBudgets(), cooldown, AppGate{}, nil)

	o.Inject(context.Background(), "app", "hello")
	calls := atspi.calls
	o.Inject(context.Background(), "app", "hello again")
	if atspi.calls != calls {
		t.Fatalf("expected atspi to be skipped while in cooldown, calls went from %d to %d", calls, atspi.calls)
	}
}

func TestSuccessRateOrdersCandidatesDescending(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: false}
	clip := &fakeBackend{method: MethodClipboardAndPaste, available: true, ok: true}
	cooldown := CooldownConfig{InitialMs: time.Microsecond, Factor: 1, MaxMs: time.Microsecond}
	o := NewOrchestrator(KdeWayland, []Backend{atspi, clip}, DefaultBudgets(), cooldown, AppGate{}, nil)

	o.Inject(context.Background(), "app", "one")
	time.Sleep(2 * time.Millisecond) // let atspi's microsecond cooldown expire
	o.Inject(context.Background(), "app", "two")

	cands := o.candidates("app", time.Now())
	if len(cands) < 2 || cands[0] != MethodClipboardAndPaste {
		t.Fatalf("expected clipboard (higher success rate) ranked first, got %v", cands)
	}
}

func TestAppGateBlocksByPattern(t *testing.T) {
	atspi := &fakeBackend{method: MethodAtspiInsert, available: true, ok: true}
	gate := AppGate{Block: []string{"secret-app"}}
	o := NewOrchestrator(KdeWayland, []Backend{atspi}, DefaultBudgets(), DefaultCooldownConfig(), gate, nil)

	res := o.Inject(context.Background(), "secret-app", "hello")
	if res.Ok || res.Kind != FailureNotAllowed {
		t.Fatalf("expected blocked app to short-circuit with FailureNotAllowed, got %+v", res)
	}
}

func TestPreWarmDoesNotRepeatWithinTTL(t *testing.T) {
	c := newPrewarmCache(time.Hour)
	if !c.shouldRun(MethodAtspiInsert, "app") {
		t.Fatal("expected first prewarm to run")
	}
	if c.shouldRun(MethodAtspiInsert, "app") {
		t.Fatal("expected second prewarm within TTL to be suppressed")
	}
}
