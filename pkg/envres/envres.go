// Package envres implements the closure variable naming pass.
//
// The pass walks the statements of one function body once, in order. It
// tracks which register holds which environment, gives every captured slot a
// name derived from the depth of its environment and the slot index, and
// rewrites the environment instructions:
//
//   - creating or fetching an environment is removed from the output;
//   - storing to a slot becomes a declaration on the first store to that
//     slot and an assignment afterwards;
//   - loading from a slot becomes a reference to the slot's name.
//
// Closures that capture an environment are reported as Links; the driver
// uses them to set the parent environment of nested function bodies before
// resolving those.
package envres

import (
	"fmt"
	"log"

	"github.com/nextco/hermes-dec/pkg/diag"
	"github.com/nextco/hermes-dec/pkg/ir"
	"github.com/nextco/hermes-dec/pkg/logutil"
	"github.com/nextco/hermes-dec/pkg/scope"
)

var logger = logutil.GetLogger("[envres] ")

// Values of diag.Error.Type for diagnostics produced by the pass.
const (
	MissingBindingType      = "missing environment binding"
	ChainUnderflowType      = "chain underflow"
	UnrecognizedOperandType = "unrecognized slot operand format"
)

// MissingBinding is the cause of an error when an instruction uses a
// register that holds no environment at that point.
type MissingBinding struct {
	Register  int
	Function  int
	Statement int
}

func (e *MissingBinding) Error() string {
	return fmt.Sprintf("r%d holds no environment at statement %d of function #%d",
		e.Register, e.Statement, e.Function)
}

// Link records that a closure of Function captures Env.
type Link struct {
	Function int
	Env      *scope.Env
}

// Context is the state of resolving one function body. Register numbers are
// only meaningful within that body.
type Context struct {
	// Register -> environment held by it.
	Bindings map[int]*scope.Env
	// Closures created with an environment, in statement order.
	Links []Link
	// Non-fatal diagnostics.
	Warnings []*diag.Error
}

// Env returns the environment bound to a register.
func (ctx *Context) Env(reg int) (*scope.Env, bool) {
	env, ok := ctx.Bindings[reg]
	return env, ok
}

// Option customizes Resolve.
type Option func(*resolver)

// WithLogger makes Resolve log to l instead of the package logger.
func WithLogger(l *log.Logger) Option {
	return func(r *resolver) { r.logger = l }
}

// Resolve runs the pass over fn, rewriting fn.Statements in place.
//
// On a fatal error, fn is left unchanged, no slot name is added to any
// environment, and the error is a *diag.Error whose Type is
// MissingBindingType or ChainUnderflowType; the Context returned alongside
// holds the bindings established before the failure.
func Resolve(fn *ir.FunctionBody, opts ...Option) (ctx *Context, err error) {
	r := newResolver(fn)
	for _, opt := range opts {
		opt(r)
	}
	ctx = r.ctx
	defer func() {
		rec := recover()
		if rec == nil {
			return
		} else if e := GetResolutionError(rec); e != nil {
			err = e
		} else {
			// Resume the panic; it is not supposed to be handled here.
			panic(rec)
		}
	}()

	statements := make([]ir.Statement, len(fn.Statements))
	for i, s := range fn.Statements {
		r.stmt = i
		statements[i] = r.statement(s)
	}
	r.commit()
	fn.Statements = statements
	return ctx, nil
}

// GetResolutionError returns a *diag.Error if the given value is a fatal
// error of the pass. Otherwise it returns nil.
func GetResolutionError(e any) *diag.Error {
	if e, ok := e.(*diag.Error); ok &&
		(e.Type == MissingBindingType || e.Type == ChainUnderflowType) {
		return e
	}
	return nil
}
