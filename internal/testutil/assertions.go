package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "investtracker/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares by value, so "90" matches 90.00.
func AssertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()

	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// AssertNullDecimal checks a nullable amount; want "" expects null.
func AssertNullDecimal(t *testing.T, got decimal.NullDecimal, want string) {
	t.Helper()

	switch {
	case want == "" && got.Valid:
		t.Errorf("expected null, got %s", got.Decimal)
	case want != "" && !got.Valid:
		t.Errorf("expected %s, got null", want)
	case want != "":
		AssertDecimal(t, got.Decimal, want)
	}
}
