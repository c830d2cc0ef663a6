// Package decomp drives the closure variable naming pass over all the
// function bodies of a program.
//
// Function bodies are resolved outer before inner: a body is resolved only
// after the body that creates its closure has been resolved and has handed
// over the environment the closure captures.
package decomp

import (
	"fmt"
	"sort"

	"github.com/nextco/hermes-dec/pkg/diag"
	"github.com/nextco/hermes-dec/pkg/envres"
	"github.com/nextco/hermes-dec/pkg/errutil"
	"github.com/nextco/hermes-dec/pkg/ir"
	"github.com/nextco/hermes-dec/pkg/logutil"
)

var logger = logutil.GetLogger("[decomp] ")

// LinkWarningType is the diag.Error Type of warnings about closure links the
// driver cannot honor.
const LinkWarningType = "closure link"

// Program is a whole decompiled program. Functions are indexed by their
// function table index, and function 0 is the entry point.
type Program struct {
	Functions []*ir.FunctionBody
}

// Result is the outcome of resolving a Program.
type Result struct {
	// Function indices in the order they were resolved.
	Order []int
	// Contexts of all resolved functions. For a function listed in Errors,
	// the context holds what was established before the failure; its
	// Links are not applied.
	Contexts map[int]*envres.Context
	// Fatal errors, by function index. Functions listed here were not
	// rewritten.
	Errors map[int]error
	// Non-fatal diagnostics from all functions, in resolution order,
	// including those a failed function raised before failing.
	Warnings []Warning
}

// Warning is a non-fatal diagnostic about one function body.
type Warning struct {
	Function int
	Err      *diag.Error
}

// Err returns all the fatal errors combined, in function index order, or nil
// if every function was resolved.
func (r *Result) Err() error {
	indices := make([]int, 0, len(r.Errors))
	for i := range r.Errors {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	errs := make([]error, len(indices))
	for i, index := range indices {
		errs[i] = r.Errors[index]
	}
	return errutil.Multi(errs...)
}

// Resolve runs the pass over every function body of p. A fatal error in one
// function does not stop the others from being resolved.
func (p *Program) Resolve(opts ...envres.Option) *Result {
	d := &driver{
		p: p,
		res: &Result{
			Contexts: make(map[int]*envres.Context),
			Errors:   make(map[int]error),
		},
		queued:   make([]bool, len(p.Functions)),
		resolved: make([]bool, len(p.Functions)),
		linked:   make([]bool, len(p.Functions)),
		opts:     opts,
	}
	// Start from the entry point, then from bodies no closure captures an
	// environment for, then from whatever is left, such as bodies whose
	// creator failed.
	captured := p.captured()
	if len(p.Functions) > 0 {
		d.resolveFrom(0)
	}
	for i := range p.Functions {
		if !d.queued[i] && !captured[i] {
			d.resolveFrom(i)
		}
	}
	for i := range p.Functions {
		if !d.queued[i] {
			d.resolveFrom(i)
		}
	}
	return d.res
}

// Returns which function bodies some closure instruction creates with an
// environment.
func (p *Program) captured() []bool {
	captured := make([]bool, len(p.Functions))
	for _, fn := range p.Functions {
		for _, s := range fn.Statements {
			for _, t := range s.Tokens {
				if c, ok := t.(ir.Closure); ok && c.EnvReg != nil &&
					c.Function >= 0 && c.Function < len(captured) {
					captured[c.Function] = true
				}
			}
		}
	}
	return captured
}

type driver struct {
	p        *Program
	res      *Result
	queued   []bool
	resolved []bool
	linked   []bool
	opts     []envres.Option
}

// Resolves the body at root and, breadth first, the bodies it creates
// closures of.
func (d *driver) resolveFrom(root int) {
	queue := []int{root}
	d.queued[root] = true
	for len(queue) > 0 {
		index := queue[0]
		queue = queue[1:]
		for _, inner := range d.resolveOne(index) {
			if !d.queued[inner] {
				d.queued[inner] = true
				queue = append(queue, inner)
			}
		}
	}
}

// Resolves one function body, hands its captured environments over to the
// bodies it creates closures of, and returns the indices of those bodies.
func (d *driver) resolveOne(index int) []int {
	fn := d.p.Functions[index]
	res := d.res
	res.Order = append(res.Order, index)
	d.resolved[index] = true
	ctx, err := envres.Resolve(fn, d.opts...)
	res.Contexts[index] = ctx
	for _, w := range ctx.Warnings {
		res.Warnings = append(res.Warnings, Warning{index, w})
	}
	if err != nil {
		logger.Printf("%s failed: %v", fn.DisplayName(), err)
		res.Errors[index] = err
		return nil
	}

	var inner []int
	for _, link := range ctx.Links {
		if link.Function < 0 || link.Function >= len(d.p.Functions) {
			res.Warnings = append(res.Warnings, linkWarning(fn,
				"closure of function #%d, which does not exist", link.Function))
			continue
		}
		target := d.p.Functions[link.Function]
		switch {
		case d.linked[link.Function] && target.ParentEnv != link.Env:
			res.Warnings = append(res.Warnings, linkWarning(fn,
				"%s already captures another environment; keeping the first", target.DisplayName()))
			continue
		case d.resolved[link.Function] && target.ParentEnv != link.Env:
			res.Warnings = append(res.Warnings, linkWarning(fn,
				"%s was resolved before the closure capturing its environment", target.DisplayName()))
			continue
		}
		d.linked[link.Function] = true
		target.ParentEnv = link.Env
		inner = append(inner, link.Function)
	}
	return inner
}

func linkWarning(fn *ir.FunctionBody, format string, args ...any) Warning {
	w := &diag.Error{
		Type:    LinkWarningType,
		Message: fmt.Sprintf(format, args...),
		Context: diag.Context{Name: fn.DisplayName(), Ranging: diag.UnknownRanging},
	}
	logger.Println(w.Error())
	return Warning{fn.Index, w}
}
