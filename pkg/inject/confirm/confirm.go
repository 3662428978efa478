// Package confirm polls the accessibility layer after an injection call to
// decide whether the text actually landed (spec §4.11). Confirmation
// failure never fails the injection itself — Timeout is read by the
// orchestrator as "unknown, try next", not as an error.
package confirm

import (
	"context"
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

// Outcome is the result of a confirmation poll.
type Outcome int

const (
	Timeout Outcome = iota
	Success
	Error
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "timeout"
	}
}

const (
	pollInterval = 10 * time.Millisecond
	defaultBudget = 75 * time.Millisecond
)

// TextReader reads the current text of the focused editable element.
// Implementations poll the same accessibility layer an injection backend
// used (e.g. AT-SPI's Text interface GetText call).
type TextReader interface {
	FocusedText(ctx context.Context) (string, error)
}

// ExtractPrefix applies spec §4.11's grapheme-prefix rule: source length
// 1-3 graphemes take all, 4-6 take 3, >=7 take 4. An empty source yields an
// empty prefix, which the caller must treat as invalid.
func ExtractPrefix(injected string) string {
	graphemes := splitGraphemes(injected)
	n := len(graphemes)
	switch {
	case n == 0:
		return ""
	case n <= 3:
		return strings.Join(graphemes, "")
	case n <= 6:
		return strings.Join(graphemes[:3], "")
	default:
		return strings.Join(graphemes[:4], "")
	}
}

func splitGraphemes(s string) []string {
	var out []string
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		out = append(out, gr.Str())
	}
	return out
}

// Poll confirms that injected text appears to have landed: the focused
// element's text grew and its new suffix begins with the expected prefix
// (spec §4.11). It polls every 10ms up to budget (default 75ms).
func Poll(ctx context.Context, reader TextReader, before string, injected string, budget time.Duration) Outcome {
	prefix := ExtractPrefix(injected)
	if prefix == "" {
		return Error
	}
	if budget <= 0 {
		budget = defaultBudget
	}

	deadline := time.Now().Add(budget)
	beforeLen := graphemeLen(before)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		current, err := reader.FocusedText(ctx)
		if err == nil && textGrewWithPrefix(before, beforeLen, current, prefix) {
			return Success
		}
		if time.Now().After(deadline) {
			return Timeout
		}
		select {
		case <-ctx.Done():
			return Timeout
		case <-ticker.C:
		}
	}
}

func textGrewWithPrefix(before string, beforeLen int, current string, prefix string) bool {
	if graphemeLen(current) <= beforeLen {
		return false
	}
	suffix := suffixAfter(before, current)
	return strings.HasPrefix(suffix, prefix)
}

// suffixAfter returns the portion of current following the shared prefix
// with before (the simplest reading of "the new suffix" when the injected
// text was appended at the caret, which for a dictation flush is normally
// at the end of the existing buffer).
func suffixAfter(before, current string) string {
	if strings.HasPrefix(current, before) {
		return current[len(before):]
	}
	return current
}

func graphemeLen(s string) int {
	return len(splitGraphemes(s))
}
