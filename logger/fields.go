package logger

// Standard field key constants for structured logging.
const (
	FieldComponent     = "component"
	FieldCorrelationID = "correlation_id"
	FieldOperation     = "operation"
	FieldAttempt       = "attempt"
	FieldSymbol        = "symbol"
	FieldOrderID       = "order_id"
	FieldStatus        = "status"
	FieldState         = "state"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldLatency       = "latency_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("retrying", logger.Fields("attempt", 2, "backoff_ms", 200))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
