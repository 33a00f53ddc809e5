// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldSessionID     = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldStrategy = "strategy"
	FieldCategory = "category"
	FieldFatal    = "fatal"
	FieldCommand  = "command"
	FieldSource   = "source"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath     = "path"
	FieldTarget   = "target"
	FieldUpstream = "upstream"
)
