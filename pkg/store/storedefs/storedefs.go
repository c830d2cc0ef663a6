// Package storedefs contains definitions of the store API.
//
// It is a separate package so that packages that only depend on the store API
// do not need to depend on the concrete implementation.
package storedefs

import "errors"

// ErrNoFunction is returned by Store.Function when no function with the given
// index has been stored.
var ErrNoFunction = errors.New("no such function")

// Store is an interface satisfied by the storage of decompilation results.
type Store interface {
	PutFunction(fn Function) error
	Function(index int) (Function, error)
	Functions() ([]Function, error)

	AddDiagnostic(d Diagnostic) (int, error)
	Diagnostics() ([]Diagnostic, error)

	Close() error
}

// Function is the rendered text of a resolved function body.
type Function struct {
	Index int
	Name  string
	Text  string
}

// Diagnostic is a warning or error reported while resolving a function body.
type Diagnostic struct {
	Seq      int
	Function int
	Message  string
}
