// Package validation provides common validation utilities for configuration
// parameters across the taskflow library.
//
// Every helper returns nil for valid input and a *errors.ValidationError
// (which unwraps to errors.ErrInvalidConfiguration) otherwise, so engine,
// backoff and scheduler constructors report misconfiguration uniformly.
package validation
