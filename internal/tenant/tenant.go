// Package tenant validates the tenant identifiers that scope every local and
// remote sync operation.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxIDLength is the maximum length of a tenant ID.
const MaxIDLength = 128

// ErrInvalidTenantID indicates a tenant ID failed validation.
var ErrInvalidTenantID = errors.New("invalid tenant ID")

// Remote document stores issue opaque user identifiers, so the pattern allows
// mixed case and underscores.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_-]*[A-Za-z0-9])?$`)

// Validate checks a tenant ID against format rules.
// Returns nil if valid, ErrInvalidTenantID with details if invalid.
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty tenant ID", ErrInvalidTenantID)
	}

	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidTenantID, MaxIDLength)
	}

	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (must be alphanumeric with hyphens or underscores)", ErrInvalidTenantID, id)
	}

	return nil
}
