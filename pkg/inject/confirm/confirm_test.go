package confirm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExtractPrefixShortSourceTakesAll(t *testing.T) {
	if got := ExtractPrefix("hi"); got != "hi" {
		t.Fatalf("expected 'hi', got %q", got)
	}
}

func TestExtractPrefixMediumSourceTakesThree(t *testing.T) {
	if got := ExtractPrefix("hello"); got != "hel" {
		t.Fatalf("expected 'hel', got %q", got)
	}
}

func TestExtractPrefixLongSourceTakesFour(t *testing.T) {
	if got := ExtractPrefix("hello world"); got != "hell" {
		t.Fatalf("expected 'hell', got %q", got)
	}
}

func TestExtractPrefixEmptyIsEmpty(t *testing.T) {
	if got := ExtractPrefix(""); got != "" {
		t.Fatalf("expected empty prefix, got %q", got)
	}
}

type fakeReader struct {
	texts []string
	i     int
	err   error
}

func (f *fakeReader) FocusedText(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.i >= len(f.texts) {
		return f.texts[len(f.texts)-1], nil
	}
	t := f.texts[f.i]
	f.i++
	return t, nil
}

func TestPollSucceedsWhenSuffixMatchesPrefix(t *testing.T) {
	reader := &fakeReader{texts: []string{"existing ", "existing hello"}}
	outcome := Poll(context.Background(), reader, "existing ", "hello world", 50*time.Millisecond)
	if outcome != Success {
		t.Fatalf("expected Success, got %v", outcome)
	}
}

func TestPollTimesOutWhenTextNeverGrows(t *testing.T) {
	reader := &fakeReader{texts: []string{"existing"}}
	outcome := Poll(context.Background(), reader, "existing", "hello", 20*time.Millisecond)
	if outcome != Timeout {
		t.Fatalf("expected Timeout, got %v", outcome)
	}
}

func TestPollReturnsErrorForEmptyInjectedText(t *testing.T) {
	reader := &fakeReader{texts: []string{"existing"}}
	outcome := Poll(context.Background(), reader, "existing", "", 20*time.Millisecond)
	if outcome != Error {
		t.Fatalf("expected Error for empty injected text, got %v", outcome)
	}
}

func TestPollTimesOutOnPersistentReaderError(t *testing.T) {
	reader := &fakeReader{err: errors.New("no focus")}
	outcome := Poll(context.Background(), reader, "existing", "hello", 20*time.Millisecond)
	if outcome != Timeout {
		t.Fatalf("expected Timeout when reader errors persist, got %v", outcome)
	}
}

func TestPollRejectsGrowthWithWrongPrefix(t *testing.T) {
	reader := &fakeReader{texts: []string{"existing wxyz"}}
	outcome := Poll(context.Background(), reader, "existing ", "hello", 20*time.Millisecond)
	if outcome != Timeout {
		t.Fatalf("expected Timeout when suffix doesn't match prefix, got %v", outcome)
	}
}
