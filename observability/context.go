package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/autoquant/alphakit/errors"
)

// OperationContext ties together the span, timing, and metrics of one
// tracked trading operation (an order submission, a margin poll). It travels
// through the context so nested calls can annotate the same operation.
type OperationContext struct {
	ServiceName   string
	OperationName string
	CorrelationID string
	Symbol        string
	StartTime     time.Time
	Metrics       *Metrics
}

// NewOperationContext starts tracking an operation. A nil metrics silently
// disables metric recording; the span still happens.
func NewOperationContext(serviceName, operationName, correlationID string, metrics *Metrics) *OperationContext {
	return &OperationContext{
		ServiceName:   serviceName,
		OperationName: operationName,
		CorrelationID: correlationID,
		StartTime:     time.Now(),
		Metrics:       metrics,
	}
}

type operationContextKey struct{}

// WithOperationContext stores an OperationContext in the context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// OperationContextFromContext retrieves the OperationContext, or nil.
func OperationContextFromContext(ctx context.Context) *OperationContext {
	if oc, ok := ctx.Value(operationContextKey{}).(*OperationContext); ok {
		return oc
	}
	return nil
}

// StartSpanForOperation opens the operation's span, stamped with the
// operation identity and symbol.
func (oc *OperationContext) StartSpanForOperation(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrServiceName, oc.ServiceName),
		attribute.String(AttrOperationName, oc.OperationName),
		attribute.String(AttrCorrelationID, oc.CorrelationID),
	)
	if oc.Symbol != "" {
		span.SetAttributes(attribute.String(AttrSymbol, oc.Symbol))
	}
	return ctx, span
}

// EndOperation closes the span and records the operation metric. Errors are
// counted under their AppError code so dashboards can separate rate limits
// from rejections.
func (oc *OperationContext) EndOperation(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(oc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if oc.Metrics == nil {
		return
	}
	oc.Metrics.RecordOperation(ctx, oc.OperationName, status, duration)
	if err != nil {
		code := "unclassified"
		if appErr, ok := apperrors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		oc.Metrics.RecordError(ctx, code, oc.OperationName)
	}
}

// Duration returns the elapsed time since operation start.
func (oc *OperationContext) Duration() time.Duration {
	return time.Since(oc.StartTime)
}
