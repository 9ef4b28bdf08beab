package works

import "strings"

// ValidationError carries human-readable messages for an invalid record.
type ValidationError struct {
	Record   string
	Messages []string
}

func (e *ValidationError) Error() string {
	return e.Record + " is invalid: " + strings.Join(e.Messages, ", ")
}
