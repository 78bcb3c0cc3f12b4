package privacy

// scrubbedError prints a redacted message and unwraps to the original, so
// errors.Is still matches the cause.
type scrubbedError struct {
	cause error
	text  string
}

func (e *scrubbedError) Error() string { return e.text }

func (e *scrubbedError) Unwrap() error { return e.cause }

// WrapError returns err with URLs in its message redacted, or nil for nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbedError{cause: err, text: ScrubMessage(err.Error())}
}
