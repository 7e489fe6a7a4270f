package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindRAGNotEnabled, "rag is off"), KindRAGNotEnabled},
		{"wrapped once", fmt.Errorf("send chat: %w", New(KindInvalidCommand, "empty payload")), KindInvalidCommand},
		{"wrapped inner cause", Wrap(KindGenerationUnavailable, "llm call failed", errors.New("connection refused")), KindGenerationUnavailable},
		{"plain error", errors.New("boom"), KindInternal},
		{"nil-ish chain", fmt.Errorf("outer: %w", errors.New("inner")), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	gen := Wrap(KindGenerationUnavailable, "timeout", errors.New("deadline exceeded")).AsRetryable()
	if !IsRetryable(fmt.Errorf("respond: %w", gen)) {
		t.Error("expected retryable through wrapping")
	}
	if IsRetryable(New(KindInvalidCommand, "empty payload")) {
		t.Error("command errors must not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(KindIngestionFailed, "embedding provider rejected chunk", errors.New("status 500"))
	want := "embedding provider rejected chunk: status 500"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Error("Unwrap must expose the cause")
	}
}
