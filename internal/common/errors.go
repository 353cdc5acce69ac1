package common

// AppError represents an error with an attached category and HTTP status.
type AppError struct {
	Type       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(errType, message string, status int, err error) *AppError {
	return &AppError{Type: errType, Message: message, HTTPStatus: status, Err: err}
}
