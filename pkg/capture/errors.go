package capture

import "errors"

// Error kinds from spec §7 "Audio". These are sentinel values rather than a
// closed enum: callers use errors.Is/errors.As, and StreamError/Fatal carry
// extra context via %w-wrapping at the call site.
var (
	ErrDeviceNotFound     = errors.New("capture: no input device produced audio")
	ErrFormatNotSupported = errors.New("capture: unsupported sample format")
	ErrStreamError        = errors.New("capture: stream error")
	ErrWatchdogTimeout    = errors.New("capture: no audio within watchdog window")
	ErrFatal              = errors.New("capture: no device produced audio, capture thread terminated")
)
