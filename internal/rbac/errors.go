package rbac

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated  = errors.New("rbac: unauthenticated")
	ErrPermissionDenied = errors.New("rbac: permission denied")
	ErrNotFound         = errors.New("rbac: not found")
)

// Denial reasons surfaced to callers and recorded in the audit trail.
const (
	ReasonUnauthenticated        = "unauthenticated"
	ReasonInsufficientPermission = "insufficient_permission"
	ReasonAccountDisabled        = "account_disabled"
)

// DeniedError carries the denied capability and a machine-readable reason.
// It matches ErrPermissionDenied under errors.Is.
type DeniedError struct {
	Capability Capability
	Reason     string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rbac: permission denied: %s (%s)", e.Capability, e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}
