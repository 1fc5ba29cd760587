package odk

import "fmt"

// SubmissionError marks a malformed submission. Non-retryable: the client
// sent something this server can never accept.
type SubmissionError struct {
	Reason string
	Tag    string // offending element or code, when known
	FormID string
}

func (e *SubmissionError) Error() string {
	msg := e.Reason
	if e.Tag != "" {
		msg += " (tag: " + e.Tag + ")"
	}
	if e.FormID != "" {
		msg += " (form: " + e.FormID + ")"
	}
	return msg
}

func submissionErrorf(format string, args ...any) *SubmissionError {
	return &SubmissionError{Reason: fmt.Sprintf(format, args...)}
}

// FormVersionError marks a missing or stale version token. Retryable once the
// client re-fetches the form.
type FormVersionError struct {
	Reason string
}

func (e *FormVersionError) Error() string { return e.Reason }
