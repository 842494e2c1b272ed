package validation

import (
	"testing"
	"time"

	"github.com/vnykmshr/taskflow/pkg/common/errors"
)

func checkValidation(t *testing.T, err error, wantError bool) {
	t.Helper()
	if wantError {
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !errors.IsValidationError(err) {
			t.Errorf("expected ValidationError, got %T", err)
		}
		return
	}
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large negative", -1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidatePositive("engine", "max_workers", tt.value), tt.wantError)
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{"positive value", 10.5, false},
		{"zero value", 0.0, false},
		{"negative value", -1.5, true},
		{"small negative", -0.001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidateNonNegative("engine", "dispatch_rate", tt.value), tt.wantError)
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"zero disables", 0, false},
		{"positive", time.Second, false},
		{"negative", -time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidateNonNegativeDuration("task", "timeout", tt.value), tt.wantError)
		})
	}
}

func TestValidateAtLeast(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{"equal to min", 1, false},
		{"above min", 2.5, false},
		{"below min", 0.5, true},
		{"zero", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidateAtLeast("backoff", "multiplier", tt.value, 1), tt.wantError)
		})
	}
}

func TestValidateNotNil(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"non-nil int", 123, false},
		{"non-nil struct", struct{}{}, false},
		{"nil value", nil, true},
		{"nil pointer", (*int)(nil), false}, // typed nil is not nil interface
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidateNotNil("engine", "strategy", tt.value), tt.wantError)
		})
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty string", "value", false},
		{"whitespace", " ", false},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, ValidateNotEmpty("scheduler", "cron", tt.value), tt.wantError)
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	t.Run("ValidatePositive error details", func(t *testing.T) {
		err := ValidatePositive("engine", "max_attempts", -5)
		valErr, ok := err.(*errors.ValidationError)
		if !ok {
			t.Fatalf("could not cast %T to ValidationError", err)
		}

		if valErr.Module != "engine" {
			t.Errorf("Module = %q, want %q", valErr.Module, "engine")
		}
		if valErr.Field != "max_attempts" {
			t.Errorf("Field = %q, want %q", valErr.Field, "max_attempts")
		}
		if valErr.Value != -5 {
			t.Errorf("Value = %v, want %v", valErr.Value, -5)
		}
		if valErr.Hint != "value must be greater than 0" {
			t.Errorf("Hint = %q, want %q", valErr.Hint, "value must be greater than 0")
		}
	})

	t.Run("ValidateAtLeast hint names the minimum", func(t *testing.T) {
		err := ValidateAtLeast("backoff", "multiplier", 0.5, 1.5)
		valErr, ok := err.(*errors.ValidationError)
		if !ok {
			t.Fatalf("could not cast %T to ValidationError", err)
		}
		if valErr.Hint != "value must be at least 1.5" {
			t.Errorf("Hint = %q", valErr.Hint)
		}
	})

	t.Run("ValidateNotEmpty error details", func(t *testing.T) {
		err := ValidateNotEmpty("config", "key", "")
		valErr, ok := err.(*errors.ValidationError)
		if !ok {
			t.Fatalf("could not cast %T to ValidationError", err)
		}
		if valErr.Hint != "provide a non-empty key" {
			t.Errorf("Hint = %q, want contains 'key'", valErr.Hint)
		}
	})
}

func TestValidationErrorWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"ValidatePositive", ValidatePositive("test", "field", -1)},
		{"ValidateNonNegative", ValidateNonNegative("test", "field", -1.0)},
		{"ValidateNonNegativeDuration", ValidateNonNegativeDuration("test", "field", -time.Second)},
		{"ValidateAtLeast", ValidateAtLeast("test", "field", 0, 1)},
		{"ValidateNotNil", ValidateNotNil("test", "field", nil)},
		{"ValidateNotEmpty", ValidateNotEmpty("test", "field", "")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			valErr, ok := tc.err.(*errors.ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", tc.err)
			}
			if wrapped := valErr.Unwrap(); wrapped != errors.ErrInvalidConfiguration {
				t.Errorf("should unwrap to ErrInvalidConfiguration, got %v", wrapped)
			}
		})
	}
}
