package treasurytest

import (
	"testing"

	"github.com/iov-one/treasury/errors"
)

// FieldError ensures that given error contains the exact match of a single
// field error, tested by its type (.Is method call).
// To test that no error was found for a given field name, use `nil` as the
// match value.
func FieldError(t testing.TB, err error, fieldName string, want *errors.Error) {
	t.Helper()

	errs := errors.FieldErrors(err, fieldName)

	if want == nil {
		if len(errs) != 0 {
			for i, e := range errs {
				t.Logf("\terror %d: %q", i+1, e)
			}
			t.Fatalf("expected no %q field error, got %d", fieldName, len(errs))
		}
		return
	}

	for _, e := range errs {
		if want.Is(e) {
			return
		}
	}
	for i, e := range errs {
		t.Logf("\terror %d: %q", i+1, e)
	}
	t.Fatalf("%q field error %q not found", fieldName, want)
}
