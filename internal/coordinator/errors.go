package coordinator

import (
	"errors"
	"fmt"
)

// ErrUnknownInstruction is returned when a poll or push payload carries
// neither a known status nor a known action.
var ErrUnknownInstruction = errors.New("coordinator: unknown instruction")

// StatusError reports a non-2xx coordinator response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("coordinator: %s: HTTP %d", e.Op, e.StatusCode)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}
