package rules

import "errors"

// Domain errors surfaced by rule checks and store operations. Handlers map
// these to response statuses; a rule violation is never a silent no-op.
var (
	// ErrNotAuthorized indicates a permission or ownership failure.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotFound indicates a missing group, service, member, or request.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyMember indicates the user already belongs to the group or service.
	ErrAlreadyMember = errors.New("already a member")
	// ErrAlreadyRequested indicates a pending join request already exists.
	ErrAlreadyRequested = errors.New("join already requested")
	// ErrServiceFull indicates the service has no remaining capacity.
	ErrServiceFull = errors.New("service is full")
)
