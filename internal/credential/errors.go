package credential

import (
	"errors"
	"fmt"
)

// ErrTokenAcquisition indicates the upstream auth exchange failed.
var ErrTokenAcquisition = errors.New("token acquisition failed")

// AcquisitionError carries the tenant and cause of a failed exchange.
type AcquisitionError struct {
	TenantID string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token acquisition failed for tenant %s: %s: %v", e.TenantID, e.Message, e.Cause)
	}
	return fmt.Sprintf("token acquisition failed for tenant %s: %s", e.TenantID, e.Message)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// Is matches both the sentinel and other AcquisitionErrors.
func (e *AcquisitionError) Is(target error) bool {
	if errors.Is(target, ErrTokenAcquisition) {
		return true
	}
	_, ok := target.(*AcquisitionError)
	return ok
}
