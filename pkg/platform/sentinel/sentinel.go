package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Snapshot stores and the backend
// client return these (optionally wrapped) so services can translate them into
// domain errors.
//
//   - ErrNotFound: session snapshot or business record does not exist
//   - ErrConflict: the record was changed underneath the caller
//   - ErrExpired: session snapshot outlived its TTL
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrUnavailable: backend unreachable or circuit open
//   - ErrRejected: backend answered with success=false
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrRejected     = errors.New("rejected by backend")
)
