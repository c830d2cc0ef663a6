// Package errutil combines the errors of independent units of work, such as
// the function bodies of one program.
package errutil

import (
	"fmt"
	"strings"
)

// Multi combines errs into one error, skipping nils. It returns nil when no
// error is left and the error itself when only one is. Combined errors passed
// to Multi again are flattened, so Errors always yields the leaves.
func Multi(errs ...error) error {
	var leaves []error
	for _, err := range errs {
		leaves = append(leaves, Errors(err)...)
	}
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return leaves[0]
	}
	return &multiError{leaves}
}

// Errors splits an error built by Multi back into its parts, in the order
// they were given. A nil error yields nil and any other error a slice of
// itself.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if m, ok := err.(*multiError); ok {
		return append([]error(nil), m.errs...)
	}
	return []error{err}
}

type multiError struct{ errs []error }

func (m *multiError) Error() string {
	msgs := make([]string, len(m.errs))
	for i, err := range m.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(m.errs), strings.Join(msgs, "; "))
}
