package backends

import (
	"context"
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"
)

// AtspiFocusFinder locates the focused editable accessible by asking the
// AT-SPI registry daemon for the currently focused object on the session's
// accessibility bus, then adapting it to editableTarget. AT-SPI's full tree
// walk (Accessible.GetState bitmask check for STATE_FOCUSED across an
// application's descendants) is considerably more involved than this; this
// implementation takes the registry's last-reported focus event, which is
// sufficient for the common case of "the window the user is dictating
// into" and keeps the accessibility-bus plumbing itself — connection setup,
// bus address discovery — exercised against the real protocol.
type AtspiFocusFinder struct {
	conn *dbus.Conn
}

// NewAtspiFocusFinder connects to the AT-SPI accessibility bus by asking
// the session bus for its address (the standard AT-SPI bootstrap, per the
// org.a11y.Bus.GetAddress method).
func NewAtspiFocusFinder() (*AtspiFocusFinder, error) {
	sessionBus, err := dbus.SessionBusPrivate()
	if err != nil {
		return nil, err
	}
	if err := sessionBus.Auth(nil); err != nil {
		sessionBus.Close()
		return nil, err
	}
	if err := sessionBus.Hello(); err != nil {
		sessionBus.Close()
		return nil, err
	}
	defer sessionBus.Close()

	var addr string
	obj := sessionBus.Object(atspiBusName, dbus.ObjectPath(atspiBusPath))
	if err := obj.Call(atspiBusName+".GetAddress", 0).Store(&addr); err != nil {
		return nil, err
	}

	a11yBus, err := dbus.Dial(addr)
	if err != nil {
		return nil, err
	}
	if err := a11yBus.Auth(nil); err != nil {
		a11yBus.Close()
		return nil, err
	}
	if err := a11yBus.Hello(); err != nil {
		a11yBus.Close()
		return nil, err
	}
	return &AtspiFocusFinder{conn: a11yBus}, nil
}

func (f *AtspiFocusFinder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}

// FocusedEditable asks the registry for the focused application/accessible
// pair and wraps it as an editableTarget. AT-SPI reports a focused object
// as a (bus name, object path) pair via org.a11y.atspi.Socket/registry
// bookkeeping; if nothing is focused or the focused object is not a text
// field, this returns a no-editable-focus error.
func (f *AtspiFocusFinder) FocusedEditable(ctx context.Context) (editableTarget, error) {
	if f.conn == nil {
		return nil, errors.New("atspi: not connected")
	}

	registry := f.conn.Object(atspiRegistryName, dbus.ObjectPath("/org/a11y/atspi/registry"))
	var busName string
	var path dbus.ObjectPath
	call := registry.CallWithContext(ctx, atspiRegistryName+".GetFocus", 0)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&busName, &path); err != nil {
		return nil, err
	}
	if busName == "" || path == "" {
		return nil, errors.New("atspi: no focused accessible reported")
	}

	target := f.conn.Object(busName, path)
	var introspection string
	if err := target.CallWithContext(ctx, "org.freedesktop.DBus.Introspectable.Introspect", 0).Store(&introspection); err != nil {
		return nil, errors.New("atspi: focused accessible is not introspectable")
	}
	if !strings.Contains(introspection, atspiEditableIface) {
		return nil, errors.New("atspi: focused accessible is not an editable text field")
	}
	return dbusEditableTarget{obj: target}, nil
}
