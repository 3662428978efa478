package backends

import (
	"context"
	"errors"
	"os/exec"

	"github.com/coldvox/coldvox/pkg/inject"
)

// cliTool runs a synthetic-key CLI tool (ydotool, kdotool) to type text
// directly, opt-in via an allow flag (spec §4.10: "opt-in (allow_* flags);
// perform synthetic key events ... or direct text typing").
type cliTool struct {
	method  inject.Method
	allowed bool
	bin     string
	typeArgs func(text string) []string
}

func (c cliTool) Method() inject.Method { return c.method }

func (c cliTool) Available(ctx context.Context) bool {
	if !c.allowed {
		return false
	}
	_, err := exec.LookPath(c.bin)
	return err == nil
}

func (c cliTool) Inject(ctx context.Context, text string) inject.Result {
	if !c.allowed {
		return inject.Result{Method: c.method, Ok: false, Kind: inject.FailureOther, Err: errors.New(string(c.method) + ": not allowed (allow_* flag unset)")}
	}
	if text == "" {
		return inject.Result{Method: c.method, Ok: true, Kind: inject.FailureNone}
	}
	cmd := exec.CommandContext(ctx, c.bin, c.typeArgs(text)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return inject.Result{Method: c.method, Ok: false, Kind: inject.FailureTimeout, Err: ctx.Err()}
		}
		return inject.Result{Method: c.method, Ok: false, Kind: inject.FailureOther, Err: err}
	}
	return inject.Result{Method: c.method, Ok: true, Kind: inject.FailureNone}
}

// NewYdotool types text via the ydotool CLI (Wayland-compatible uinput
// based synthetic input), gated by allow.
func NewYdotool(allow bool) inject.Backend {
	return cliTool{
		method:  inject.MethodYdotool,
		allowed: allow,
		bin:     "ydotool",
		typeArgs: func(text string) []string { return []string{"type", "--", text} },
	}
}

// NewKdotool types text via the kdotool CLI (KWin scripting-based window
// and input control), gated by allow.
func NewKdotool(allow bool) inject.Backend {
	return cliTool{
		method:  inject.MethodKdotool,
		allowed: allow,
		bin:     "kdotool",
		typeArgs: func(text string) []string { return []string{"type", text} },
	}
}

// Enigo is a stub: no example in the pack imports a pure-Go synthetic-input
// library (the "enigo" crate has no grounded Go port in this corpus), so
// rather than fabricate a dependency this backend is always unavailable —
// kept as a named strategy slot so the orchestrator's ordering table and
// the Allow field have somewhere to point once a real binding is chosen.
type Enigo struct {
	Allow bool
}

func (Enigo) Method() inject.Method { return inject.MethodEnigo }

func (e Enigo) Available(ctx context.Context) bool { return false }

func (e Enigo) Inject(ctx context.Context, text string) inject.Result {
	return inject.Result{
		Method: inject.MethodEnigo,
		Ok:     false,
		Kind:   inject.FailureOther,
		Err:    errors.New("enigo: not wired in this build, no grounded Go binding in the dependency set"),
	}
}

// NoOp always succeeds by discarding the text (spec §4.10's terminal
// fallback). The orchestrator also keeps an internal copy of this behavior
// so NoOp is available even when the caller doesn't wire one explicitly;
// this exported type exists for callers that want it logged explicitly.
type NoOp struct {
	Logger interface {
		Info(msg string, args ...interface{})
	}
}

func (NoOp) Method() inject.Method               { return inject.MethodNoOp }
func (NoOp) Available(ctx context.Context) bool   { return true }

func (n NoOp) Inject(ctx context.Context, text string) inject.Result {
	if n.Logger != nil {
		n.Logger.Info("inject: noop backend discarding text", "len", len(text))
	}
	return inject.Result{Method: inject.MethodNoOp, Ok: true, Kind: inject.FailureNone}
}
