package ports

import (
	"context"
	"errors"
	"fmt"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// BackendError describes a failed backend call. Err is one of the sentinel
// errors so callers can branch with errors.Is.
type BackendError struct {
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v: %s", e.Endpoint, e.Err, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// TranslateError maps a backend failure to a coded error. A rejection keeps the
// backend's message so it can be shown to the operator; anything else uses
// fallback.
func TranslateError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	switch {
	case errors.Is(err, sentinel.ErrRejected):
		msg := fallback
		if errors.As(err, &be) && be.Message != "" {
			msg = be.Message
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, fallback)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fallback+": request timed out or was cancelled")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fallback)
	}
}
