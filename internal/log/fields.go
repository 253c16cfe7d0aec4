package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldStudentID = "student_id"
	FieldSessionID = "session_id"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Playback fields
	FieldInstruction = "instruction"
	FieldHandle      = "handle"
	FieldTarget      = "target"
	FieldURL         = "url"

	// Scorer fields
	FieldAttention = "smoothed_attention"
	FieldAlertMsg  = "alert_msg"
)
