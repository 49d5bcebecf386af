package testutil

import (
	"net/http"
	"time"

	"onboard/pkg/requestcontext"
)

// WithOperator adds an operator ID to the request context, the way the
// operator auth middleware does for authenticated console requests.
func WithOperator(req *http.Request, operatorID string) *http.Request {
	return req.WithContext(requestcontext.WithOperatorID(req.Context(), operatorID))
}

// WithTime pins the request time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
