package pipeline

// ValidationError marks a request rejected before any side effect; the
// HTTP layer maps it to 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// PersistenceError marks a fatal contact or lead storage failure; the HTTP
// layer maps it to 500 with a generic message and, outside production, the
// wrapped detail.
type PersistenceError struct {
	Code string
	Err  error
}

func (e *PersistenceError) Error() string {
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
