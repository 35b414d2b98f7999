package log

const (
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldCache     = "cache"

	// FieldUserID doubles as the echo context key the auth middleware sets.
	FieldUserID = "user_id"

	FieldService = "service"
)
