package errutil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	err1 = errors.New("error 1")
	err2 = errors.New("error 2")
	err3 = errors.New("error 3")
)

func TestMulti(t *testing.T) {
	if err := Multi(); err != nil {
		t.Errorf("Multi() -> %v, want nil", err)
	}
	if err := Multi(nil, nil); err != nil {
		t.Errorf("Multi(nil, nil) -> %v, want nil", err)
	}
	if err := Multi(nil, err1); err != err1 {
		t.Errorf("Multi(nil, err1) -> %v, want err1", err)
	}
	err := Multi(Multi(err1, err2), nil, err3)
	if got, want := err.Error(), "3 errors: error 1; error 2; error 3"; got != want {
		t.Errorf("Error() -> %q, want %q", got, want)
	}
}

func TestErrors(t *testing.T) {
	if errs := Errors(nil); errs != nil {
		t.Errorf("Errors(nil) -> %v, want nil", errs)
	}
	opt := cmpopts.EquateErrors()
	if diff := cmp.Diff([]error{err1}, Errors(err1), opt); diff != "" {
		t.Errorf("Errors(err1) (-want +got):\n%s", diff)
	}
	combined := Multi(err1, Multi(err2, err3))
	if diff := cmp.Diff([]error{err1, err2, err3}, Errors(combined), opt); diff != "" {
		t.Errorf("Errors(combined) (-want +got):\n%s", diff)
	}
	// The returned slice is a copy.
	Errors(combined)[0] = nil
	if Errors(combined)[0] != err1 {
		t.Errorf("modifying the result of Errors changed the combined error")
	}
}
