package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID identifies one collection or vectorization run
	FieldRunID = "run_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the forge listing being walked (search, user:<name>, org:<name>)
	FieldSource = "source"

	// FieldProjectID is the forge repository ID
	FieldProjectID = "project_id"

	// FieldFullName is the "owner/name" of a repository
	FieldFullName = "full_name"

	// FieldProvider is the LLM or embedding provider name
	FieldProvider = "provider"
)

// Metric fields, attached per entry for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldSize is the response size in bytes
	FieldSize = "size"
)
