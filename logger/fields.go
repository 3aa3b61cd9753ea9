package logger

// Standard field key constants for structured logging.
const (
	FieldComponent     = "component"
	FieldService       = "service"
	FieldVersion       = "version"
	FieldRoute         = "route"
	FieldEndpoint      = "endpoint"
	FieldMethod        = "method"
	FieldStatus        = "status"
	FieldCircuitState  = "circuit_state"
	FieldCacheKey      = "cache_key"
	FieldCorrelationID = "correlation_id"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("resolved", logger.Fields("service", "user-service", "host", addr.Host))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
