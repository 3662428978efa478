package backends

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/coldvox/coldvox/pkg/inject"
)

// clipboardAPI is the subset of github.com/atotto/clipboard this package
// calls, so tests can substitute an in-memory clipboard.
type clipboardAPI interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)    { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error  { return clipboard.WriteAll(text) }

// SystemClipboard is the real clipboard backed by atotto/clipboard.
var SystemClipboard clipboardAPI = systemClipboard{}

const backupTTL = 5 * time.Second

// pasteKeySender issues the paste keystroke (Ctrl+V / Shift+Insert) into
// the focused window after the clipboard is populated. Concrete
// implementations shell out to a desktop-specific tool (ydotool, xdotool)
// — there is no pack-grounded pure-Go synthetic-input library, so this
// stays an interface the caller supplies.
type pasteKeySender interface {
	SendPaste(ctx context.Context) error
}

// execPasteSender runs an external paste-key command (e.g. "ydotool key
// ctrl+v" or "xdotool key ctrl+v"), following the same exec.CommandContext
// shell-out pattern pkg/device uses for its sound-server probes.
type execPasteSender struct {
	name string
	args []string
}

func NewExecPasteSender(name string, args ...string) pasteKeySender {
	return execPasteSender{name: name, args: args}
}

func (s execPasteSender) SendPaste(ctx context.Context) error {
	if _, err := exec.LookPath(s.name); err != nil {
		return err
	}
	return exec.CommandContext(ctx, s.name, s.args...).Run()
}

// clipboardState backs up the prior clipboard contents so they can be
// restored after the paste completes, guarded by a mutex since pre-warm
// and injection calls may race on the same backend.
type clipboardState struct {
	mu         sync.Mutex
	api        clipboardAPI
	backup     string
	backedUpAt time.Time
	hasBackup  bool
}

func (s *clipboardState) backupAndSet(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, err := s.api.ReadAll(); err == nil {
		s.backup = prior
		s.backedUpAt = time.Now()
		s.hasBackup = true
	}
	return s.api.WriteAll(text)
}

func (s *clipboardState) restoreAfter(delay time.Duration) {
	go func() {
		time.Sleep(delay)
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.hasBackup || time.Since(s.backedUpAt) > backupTTL {
			return
		}
		s.api.WriteAll(s.backup)
		s.hasBackup = false
	}()
}

// ClipboardAndPaste sets the clipboard then sends a paste keystroke,
// restoring the prior clipboard contents 500ms later (spec §4.10).
type ClipboardAndPaste struct {
	state  *clipboardState
	sender pasteKeySender
}

func NewClipboardAndPaste(api clipboardAPI, sender pasteKeySender) *ClipboardAndPaste {
	if api == nil {
		api = SystemClipboard
	}
	return &ClipboardAndPaste{state: &clipboardState{api: api}, sender: sender}
}

func (c *ClipboardAndPaste) Method() inject.Method { return inject.MethodClipboardAndPaste }

func (c *ClipboardAndPaste) Available(ctx context.Context) bool { return c.sender != nil }

func (c *ClipboardAndPaste) Inject(ctx context.Context, text string) inject.Result {
	if text == "" {
		return inject.Result{Method: c.Method(), Ok: true, Kind: inject.FailureNone}
	}
	if c.sender == nil {
		return inject.Result{Method: c.Method(), Ok: false, Kind: inject.FailureOther, Err: errors.New("clipboard: no paste sender configured")}
	}
	if err := c.state.backupAndSet(text); err != nil {
		return inject.Result{Method: c.Method(), Ok: false, Kind: inject.FailureOther, Err: err}
	}
	if err := c.sender.SendPaste(ctx); err != nil {
		if ctx.Err() != nil {
			return inject.Result{Method: c.Method(), Ok: false, Kind: inject.FailureTimeout, Err: ctx.Err()}
		}
		return inject.Result{Method: c.Method(), Ok: false, Kind: inject.FailureOther, Err: err}
	}
	c.state.restoreAfter(500 * time.Millisecond)
	return inject.Result{Method: c.Method(), Ok: true, Kind: inject.FailureNone}
}

// ClipboardPasteFallback is identical to ClipboardAndPaste but registered
// under a distinct Method so the orchestrator can rank it independently
// (e.g. a secondary paste tool after the primary one repeatedly fails).
type ClipboardPasteFallback struct{ *ClipboardAndPaste }

func NewClipboardPasteFallback(api clipboardAPI, sender pasteKeySender) *ClipboardPasteFallback {
	return &ClipboardPasteFallback{ClipboardAndPaste: NewClipboardAndPaste(api, sender)}
}

func (c *ClipboardPasteFallback) Method() inject.Method { return inject.MethodClipboardPasteFallback }

// ClipboardOnly only populates the clipboard and leaves pasting to the
// user — the minimal, always-available degraded mode (spec §4.10).
type ClipboardOnly struct {
	api clipboardAPI
}

func NewClipboardOnly(api clipboardAPI) *ClipboardOnly {
	if api == nil {
		api = SystemClipboard
	}
	return &ClipboardOnly{api: api}
}

func (c *ClipboardOnly) Method() inject.Method            { return inject.MethodClipboardOnly }
func (c *ClipboardOnly) Available(ctx context.Context) bool { return true }

func (c *ClipboardOnly) Inject(ctx context.Context, text string) inject.Result {
	if text == "" {
		return inject.Result{Method: c.Method(), Ok: true, Kind: inject.FailureNone}
	}
	if err := c.api.WriteAll(text); err != nil {
		return inject.Result{Method: c.Method(), Ok: false, Kind: inject.FailureOther, Err: err}
	}
	return inject.Result{Method: c.Method(), Ok: true, Kind: inject.FailureNone}
}
