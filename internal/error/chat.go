package derror

import (
	"errors"
	"fmt"
)

var (
	ErrAssistantTimeout = errors.New("assistant did not respond in time")
	ErrNoConversation   = errors.New("could not start a conversation")
	ErrEmptyReply       = errors.New("assistant returned no content")
)

// StatusError is returned when the assistant API answers with an unexpected
// HTTP status. Body is the raw response text.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
