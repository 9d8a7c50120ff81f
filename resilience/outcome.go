package resilience

import (
	"context"
	"errors"
	"net"

	apperrors "github.com/autoquant/alphakit/errors"
)

// Kind classifies the result of a single attempt.
type Kind int

const (
	// KindSuccess means the attempt returned a value.
	KindSuccess Kind = iota
	// KindTransient means the attempt failed but may succeed if retried.
	KindTransient
	// KindPermanent means the attempt failed and retrying cannot help.
	KindPermanent
	// KindTimeout means the attempt exceeded its deadline.
	KindTimeout
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether an outcome of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindTimeout
}

// Outcome is the tagged result of one attempt against the remote resource.
type Outcome struct {
	Kind Kind
	// Err is the cause for failed attempts, nil on success.
	Err error
}

// Success returns a successful outcome.
func Success() Outcome { return Outcome{Kind: KindSuccess} }

// Transient returns a retryable failure outcome.
func Transient(err error) Outcome { return Outcome{Kind: KindTransient, Err: err} }

// Permanent returns a non-retryable failure outcome.
func Permanent(err error) Outcome { return Outcome{Kind: KindPermanent, Err: err} }

// TimedOut returns a timeout outcome.
func TimedOut(err error) Outcome { return Outcome{Kind: KindTimeout, Err: err} }

// Classifier maps an already-normalized error into an outcome kind.
// It is never called with a nil error.
type Classifier func(error) Kind

// DefaultClassifier classifies errors produced by the broker normalization
// layer. Context deadlines and TIMEOUT-coded AppErrors become timeouts,
// retryable AppErrors and unclassified network errors become transient
// failures, and everything else is permanent.
func DefaultClassifier(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if appErr, ok := apperrors.AsAppError(err); ok {
		if appErr.Code == apperrors.ErrCodeTimeout {
			return KindTimeout
		}
		if appErr.Retryable {
			return KindTransient
		}
		return KindPermanent
	}

	// Unclassified errors lean transient so a blip in the normalization
	// layer cannot disable retries for the whole process.
	return KindTransient
}

// Classify applies the classifier to an attempt result.
func Classify(classify Classifier, err error) Outcome {
	if err == nil {
		return Success()
	}
	switch classify(err) {
	case KindTimeout:
		return TimedOut(err)
	case KindPermanent:
		return Permanent(err)
	default:
		return Transient(err)
	}
}
