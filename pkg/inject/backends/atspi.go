// Package backends implements the injection strategies from spec §4.10:
// AT-SPI direct insertion, clipboard-based paste, opt-in synthetic-input
// tools, and the NoOp terminal fallback.
package backends

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/coldvox/coldvox/pkg/inject"
)

const (
	atspiBusName        = "org.a11y.Bus"
	atspiBusPath        = "/org/a11y/bus"
	atspiRegistryName   = "org.a11y.atspi.Registry"
	atspiTextIface      = "org.a11y.atspi.Text"
	atspiEditableIface  = "org.a11y.atspi.EditableText"
	atspiComponentIface = "org.a11y.atspi.Component"
)

// dbusConn is the subset of *dbus.Conn this backend needs, so tests can
// substitute a fake bus without a real session/accessibility bus present.
type dbusConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// editableTarget is the narrow surface AtspiInsert needs from a focused
// AT-SPI element. dbusEditableTarget implements it over a real
// dbus.BusObject; tests substitute a fake that never touches D-Bus.
type editableTarget interface {
	CaretOffset(ctx context.Context) (int32, error)
	InsertText(ctx context.Context, offset int32, text string) error
}

// dbusEditableTarget adapts a real AT-SPI dbus.BusObject to editableTarget.
type dbusEditableTarget struct {
	obj dbus.BusObject
}

func (t dbusEditableTarget) CaretOffset(ctx context.Context) (int32, error) {
	var offset int32
	err := t.obj.CallWithContext(ctx, atspiTextIface+".GetCaretOffset", 0).Store(&offset)
	return offset, err
}

func (t dbusEditableTarget) InsertText(ctx context.Context, offset int32, text string) error {
	return t.obj.CallWithContext(ctx, atspiEditableIface+".InsertText", 0, offset, text, int32(len(text))).Err
}

// focusFinder locates the focused editable element on the accessibility
// bus. Resolving the real focused element (walking the AT-SPI tree via
// org.a11y.atspi.Application + Accessible.GetState) is desktop-specific
// plumbing with no example in the pack to ground against beyond the
// godbus/dbus API itself; it is abstracted behind this interface so the
// backend's retry/budget/error-mapping logic is independently testable.
type focusFinder interface {
	FocusedEditable(ctx context.Context) (editableTarget, error)
}

// AtspiInsert inserts text directly into the focused editable element via
// the AT-SPI accessibility bus (spec §4.10's primary, highest-fidelity
// strategy). It performs no confirmation of its own — pkg/inject/confirm
// polls the same accessibility layer afterward.
type AtspiInsert struct {
	conn  dbusConn
	focus focusFinder
}

func NewAtspiInsert(conn dbusConn, focus focusFinder) *AtspiInsert {
	return &AtspiInsert{conn: conn, focus: focus}
}

func (a *AtspiInsert) Method() inject.Method { return inject.MethodAtspiInsert }

func (a *AtspiInsert) Available(ctx context.Context) bool {
	return a.focus != nil
}

func (a *AtspiInsert) Inject(ctx context.Context, text string) inject.Result {
	if text == "" {
		return inject.Result{Method: a.Method(), Ok: true, Kind: inject.FailureNone}
	}
	if !a.Available(ctx) {
		return inject.Result{Method: a.Method(), Ok: false, Kind: inject.FailureOther, Err: errors.New("atspi: no bus connection")}
	}

	target, err := a.focus.FocusedEditable(ctx)
	if err != nil {
		return inject.Result{Method: a.Method(), Ok: false, Kind: inject.FailureNoEditableFocus, Err: err}
	}

	caretOffset, err := target.CaretOffset(ctx)
	if err != nil {
		caretOffset = 0
	}

	if err := target.InsertText(ctx, caretOffset, text); err != nil {
		if ctx.Err() != nil {
			return inject.Result{Method: a.Method(), Ok: false, Kind: inject.FailureTimeout, Err: ctx.Err()}
		}
		return inject.Result{Method: a.Method(), Ok: false, Kind: inject.FailureOther, Err: err}
	}
	return inject.Result{Method: a.Method(), Ok: true, Kind: inject.FailureNone}
}
