package errors

import (
	stdlib "errors"
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

func TestCause(t *testing.T) {
	std := stdlib.New("this is a stdlib error")

	cases := map[string]struct {
		err  error
		root error
	}{
		"Errors are self-causing": {
			err:  ErrNotFound,
			root: ErrNotFound,
		},
		"Wrap reveals root cause": {
			err:  Wrap(ErrNotFound, "foo"),
			root: ErrNotFound,
		},
		"Cause works for stderr as root": {
			err:  Wrap(std, "Some helpful text"),
			root: std,
		},
		"Field reveals root cause": {
			err:  Field("Amount", ErrInvalidAmount, "must be positive"),
			root: ErrInvalidAmount,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := errors.Cause(tc.err); got != tc.root {
				t.Fatalf("unexpected result: %v", got)
			}
			if got := Cause(tc.err); got != tc.root {
				t.Fatalf("unexpected result: %v", got)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	cases := map[string]struct {
		a      *Error
		b      error
		wantIs bool
	}{
		"instance of the same error": {
			a:      ErrNotFound,
			b:      ErrNotFound,
			wantIs: true,
		},
		"two different coded errors": {
			a:      ErrNotFound,
			b:      ErrModel,
			wantIs: false,
		},
		"successful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      Wrap(ErrNotFound, "gone"),
			wantIs: true,
		},
		"unsuccessful comparison to a wrapped error": {
			a:      ErrNotFound,
			b:      Wrap(ErrOverflow, "too big"),
			wantIs: false,
		},
		"not equal to stdlib error": {
			a:      ErrNotFound,
			b:      fmt.Errorf("stdlib error"),
			wantIs: false,
		},
		"not equal to a wrapped stdlib error": {
			a:      ErrNotFound,
			b:      Wrap(fmt.Errorf("stdlib error"), "wrapped"),
			wantIs: false,
		},
		"nil is nil": {
			a:      nil,
			b:      nil,
			wantIs: true,
		},
		"nil is not not-nil": {
			a:      nil,
			b:      ErrNotFound,
			wantIs: false,
		},
		"multi error matches any member": {
			a:      ErrInsufficientFunds,
			b:      Append(ErrNotFound, Wrap(ErrInsufficientFunds, "vault")),
			wantIs: true,
		},
		"multi error without a member": {
			a:      ErrInsufficientFunds,
			b:      Append(ErrNotFound, ErrModel),
			wantIs: false,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := tc.a.Is(tc.b); got != tc.wantIs {
				t.Fatalf("unexpected result: %v", got)
			}
		})
	}
}

func TestRegisterDuplicatedCodePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	Register(ErrNotFound.ABCICode(), "duplicated")
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("boom")
	}
	err := run()
	if !ErrPanic.Is(err) {
		t.Fatalf("want panic error, got %v", err)
	}
}

func TestFieldErrors(t *testing.T) {
	err := Append(
		Field("Recipient", ErrEmpty, "required"),
		Field("Amount", ErrInvalidAmount, "must be positive"),
		Field("Amount", ErrOverflow, "too big"),
	)

	if got := FieldErrors(err, "Recipient"); len(got) != 1 {
		t.Fatalf("want one recipient error, got %d", len(got))
	}
	if got := FieldErrors(err, "Amount"); len(got) != 2 {
		t.Fatalf("want two amount errors, got %d", len(got))
	}
	if got := FieldErrors(err, "Asset"); len(got) != 0 {
		t.Fatalf("want no asset errors, got %d", len(got))
	}
	if got := FieldErrors(nil, "Asset"); got != nil {
		t.Fatalf("want nil, got %v", got)
	}

	wrapped := Wrap(Field("Quorum", ErrInput, "too big"), "vault")
	if got := FieldErrors(wrapped, "Quorum"); len(got) != 1 || !ErrInput.Is(got[0]) {
		t.Fatalf("want the quorum error found behind a wrap, got %v", got)
	}
	if got := Field("Quorum", nil, "ignored"); got != nil {
		t.Fatalf("want nil, got %v", got)
	}

	const want = `field "Signers": duplicated signer: invalid input`
	if msg := Field("Signers", ErrInput, "duplicated %s", "signer").Error(); msg != want {
		t.Fatalf("want %q message, got %q", want, msg)
	}
}

func TestAppend(t *testing.T) {
	if err := Append(nil, nil); err != nil {
		t.Fatalf("want nil, got %v", err)
	}
	if err := Append(nil, ErrEmpty); err != ErrEmpty {
		t.Fatalf("want a single error returned as it is, got %v", err)
	}
	nested := Append(Append(ErrEmpty, ErrModel), ErrState)
	if n := len(nested.(multiErr)); n != 3 {
		t.Fatalf("want a flat collection of 3, got %d", n)
	}
}

func TestCode(t *testing.T) {
	cases := map[string]struct {
		err  error
		want uint32
	}{
		"nil":                 {err: nil, want: 0},
		"root":                {err: ErrUnauthorized, want: 2},
		"wrapped":             {err: Wrap(Wrap(ErrNotFound, "a"), "b"), want: 3},
		"field":               {err: Field("Quorum", ErrInput, "bad"), want: 4},
		"stdlib":              {err: stdlib.New("std"), want: 1},
		"wrapped stdlib":      {err: Wrap(stdlib.New("std"), "ctx"), want: 1},
		"pkg errors wrapping": {err: errors.Wrap(ErrModel, "pkg"), want: 5},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if got := Code(tc.err); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestABCIInfo(t *testing.T) {
	cases := map[string]struct {
		err      error
		debug    bool
		wantCode uint32
		wantLog  string
	}{
		"no error": {
			err:      nil,
			wantCode: SuccessABCICode,
			wantLog:  "",
		},
		"registered error": {
			err:      Wrap(ErrNotFound, "vault"),
			wantCode: ErrNotFound.ABCICode(),
			wantLog:  "vault: not found",
		},
		"stdlib error is redacted": {
			err:      fmt.Errorf("secret"),
			wantCode: internalABCICode,
			wantLog:  internalABCILog,
		},
		"panic is redacted": {
			err:      Wrap(ErrPanic, "secret"),
			wantCode: internalABCICode,
			wantLog:  internalABCILog,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			code, log := ABCIInfo(tc.err, tc.debug)
			if code != tc.wantCode {
				t.Errorf("want %d code, got %d", tc.wantCode, code)
			}
			if log != tc.wantLog {
				t.Errorf("want %q log, got %q", tc.wantLog, log)
			}
		})
	}
}
