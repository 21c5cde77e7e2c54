package domain

// ValidationError reports malformed input. It is never retryable.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Invalid(msg string) error {
	return &ValidationError{msg: msg}
}
