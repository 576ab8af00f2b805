package completion

import "errors"

// retryableError wraps an error to indicate the request can be retried.
// Rate limits (429), server errors (5xx), and transport failures qualify;
// auth and client errors do not.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
