package analyzer

import "fmt"

// PreconditionError reports required input missing before any network
// call was made.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("missing required input: %s", e.Field)
}

// UpstreamError reports a failed or unusable model endpoint response.
// The upstream message is preserved for the caller; the call is never
// silently retried beyond the configured policy.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// maxDiagnosticChars bounds the raw-text diagnostic attached to a
// malformed-output failure.
const maxDiagnosticChars = 500

// MalformedOutputError reports that the model's final text contained no
// parseable JSON object. RawText carries a truncated diagnostic.
type MalformedOutputError struct {
	Reason  string
	RawText string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("analysis generation failed: %s", e.Reason)
}

// NewMalformedOutputError builds a MalformedOutputError with the raw
// text truncated for diagnostics.
func NewMalformedOutputError(reason, raw string) *MalformedOutputError {
	return &MalformedOutputError{Reason: reason, RawText: truncateUTF8(raw, maxDiagnosticChars)}
}
