package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/autoquant/alphakit/errors"
)

// apiErrorBody is the error payload Alpaca returns on non-2xx responses.
type apiErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// normalizeStatus converts a non-2xx broker response into an AppError.
// The mapping mirrors Alpaca's documented status usage: 422 for rejected
// orders, 403 for insufficient buying power, 429 for rate limiting.
func normalizeStatus(status int, body []byte, symbol string) *apperrors.AppError {
	msg := apiMessage(body)

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if isDuplicateClientOrderID(msg) {
			return apperrors.DuplicateOrder("").WithDetail("http_status", status)
		}
		return apperrors.InvalidOrder(msg).WithDetail("http_status", status)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(msg), "buying power") ||
			strings.Contains(strings.ToLower(msg), "insufficient") {
			return apperrors.InsufficientFunds(symbol)
		}
		return apperrors.Forbidden(msg)
	case http.StatusNotFound:
		return apperrors.NotFound("resource", msg)
	case http.StatusRequestTimeout:
		return apperrors.Timeout("broker request")
	case http.StatusTooManyRequests:
		return apperrors.RateLimited()
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperrors.ServiceUnavailable("alpaca").WithDetail("http_status", status)
	}
	if status >= 500 {
		return apperrors.ExternalServiceError("alpaca", nil).WithDetail("http_status", status)
	}
	return apperrors.New(apperrors.ErrCodeInternal, msg, status)
}

// isDuplicateClientOrderID reports whether a rejection message is Alpaca's
// duplicate client order ID complaint. Alpaca phrases it a few ways across
// endpoints, so match on the field name plus a uniqueness word.
func isDuplicateClientOrderID(msg string) bool {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "client_order_id") && !strings.Contains(lower, "client order id") {
		return false
	}
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "already")
}

// normalizeTransport converts a transport-level failure into an AppError.
func normalizeTransport(ctx context.Context, err error) *apperrors.AppError {
	if ctx.Err() != nil {
		return apperrors.Timeout("broker request").WithCause(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Timeout("broker request").WithCause(err)
	}
	return apperrors.ConnectionFailed("alpaca").WithCause(err)
}

func apiMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if len(body) > 0 {
		const maxLen = 256
		s := string(body)
		if len(s) > maxLen {
			s = s[:maxLen]
		}
		return s
	}
	return "broker request failed"
}
