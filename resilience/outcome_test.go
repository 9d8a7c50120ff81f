package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/autoquant/alphakit/errors"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: i/o timeout" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limited", apperrors.RateLimited(), KindTransient},
		{"service unavailable", apperrors.ServiceUnavailable("alpaca"), KindTransient},
		{"external service", apperrors.ExternalServiceError("alpaca", errors.New("502")), KindTransient},
		{"timeout code", apperrors.Timeout("submit_order"), KindTimeout},
		{"invalid order", apperrors.InvalidOrder("bad qty"), KindPermanent},
		{"unauthorized", apperrors.Unauthorized(""), KindPermanent},
		{"insufficient funds", apperrors.InsufficientFunds("AAPL"), KindPermanent},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"context canceled", context.Canceled, KindTimeout},
		{"wrapped deadline", fmt.Errorf("attempt: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeout},
		{"unclassified", errors.New("something odd"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultClassifier(tt.err); got != tt.want {
				t.Errorf("DefaultClassifier(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(DefaultClassifier, nil); got.Kind != KindSuccess {
		t.Errorf("nil error classified as %s", got.Kind)
	}

	cause := apperrors.RateLimited()
	got := Classify(DefaultClassifier, cause)
	if got.Kind != KindTransient {
		t.Errorf("Kind = %s, want transient", got.Kind)
	}
	if !errors.Is(got.Err, cause) {
		t.Error("outcome must carry the cause")
	}
}

func TestKind_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindSuccess, false},
		{KindTransient, true},
		{KindTimeout, true},
		{KindPermanent, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Errorf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSuccess, "success"},
		{KindTransient, "transient"},
		{KindPermanent, "permanent"},
		{KindTimeout, "timeout"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}
