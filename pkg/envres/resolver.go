package envres

import (
	"fmt"
	"log"
	"strings"

	"github.com/nextco/hermes-dec/pkg/diag"
	"github.com/nextco/hermes-dec/pkg/ir"
	"github.com/nextco/hermes-dec/pkg/scope"
)

// resolver maintains the states needed when resolving a single function body.
type resolver struct {
	fn     *ir.FunctionBody
	ctx    *Context
	logger *log.Logger
	// Index of the statement being resolved.
	stmt int
	// Rendering of fn before the pass, for diagnostics.
	source string
	ranges []diag.Ranging
	// Slot names claimed by this pass, added to their environments only
	// when the whole body resolves.
	pending      map[slotKey]string
	pendingOrder []slotKey
}

type slotKey struct {
	env  *scope.Env
	slot int
}

func newResolver(fn *ir.FunctionBody) *resolver {
	source, ranges := fn.Source()
	return &resolver{
		fn:      fn,
		ctx:     &Context{Bindings: make(map[int]*scope.Env)},
		logger:  logger,
		source:  source,
		ranges:  ranges,
		pending: make(map[slotKey]string),
	}
}

func (r *resolver) statement(s ir.Statement) ir.Statement {
	var (
		silenced bool
		replaced []ir.Token
		out      = append([]ir.Token(nil), s.Tokens...)
	)
	for i, token := range s.Tokens {
		switch t := token.(type) {
		case ir.NewEnv:
			r.ctx.Bindings[t.Dest] = scope.New(r.fn.ParentEnv)
			silenced = true
		case ir.NewInnerEnv:
			r.ctx.Bindings[t.Dest] = scope.New(r.lookup(t.Parent))
			silenced = true
		case ir.GetEnv:
			r.ctx.Bindings[t.Dest] = r.ancestor(t.Hops)
			silenced = true
		case ir.Closure:
			if t.EnvReg != nil {
				r.ctx.Links = append(r.ctx.Links, Link{t.Function, r.lookup(*t.EnvReg)})
			}
		case ir.StoreEnv:
			name, first := r.nameForSlot(r.lookup(t.Env), t.Slot)
			if first {
				replaced = []ir.Token{ir.Raw{Text: "var " + name}, ir.Assign{}, ir.RHSReg{Reg: t.Value}}
			} else {
				replaced = []ir.Token{ir.Raw{Text: name}, ir.Assign{}, ir.RHSReg{Reg: t.Value}}
			}
		case ir.LoadEnv:
			name := ir.Raw{Text: r.loadName(t)}
			if len(s.Tokens) == 1 {
				out = []ir.Token{ir.LHSReg{Reg: t.Dest}, ir.Assign{}, name}
			} else {
				out[i] = name
			}
		case ir.Raw, ir.Assign, ir.LHSReg, ir.RHSReg, ir.LParen, ir.RParen,
			ir.Return, ir.Throw:
			// Passed through.
		default:
			panic(fmt.Sprintf("envres: unhandled token type %T", token))
		}
	}
	switch {
	case silenced:
		return ir.Statement{}
	case replaced != nil:
		return ir.Statement{Tokens: replaced}
	default:
		return ir.Statement{Tokens: out}
	}
}

func (r *resolver) lookup(reg int) *scope.Env {
	env, ok := r.ctx.Bindings[reg]
	if !ok {
		r.errorpf(MissingBindingType, &MissingBinding{reg, r.fn.Index, r.stmt},
			"r%d is not bound to an environment", reg)
	}
	return env
}

// Walks from the environment the function was defined in, never from a
// register.
func (r *resolver) ancestor(hops int) *scope.Env {
	env, err := r.fn.ParentEnv.Ancestor(hops)
	if err != nil {
		r.errorpf(ChainUnderflowType, err, "cannot get environment %d levels up: %v", hops, err)
	}
	return env
}

// Accessors of the LoadEnv operand, in priority order. The names are the ones
// used by successive revisions of the IR builder.
var envOperandFields = []struct {
	name string
	get  func(ir.EnvOperand) *int
}{
	{"env_register", func(o ir.EnvOperand) *int { return o.EnvRegister }},
	{"environment_register", func(o ir.EnvOperand) *int { return o.EnvironmentRegister }},
	{"environment_id", func(o ir.EnvOperand) *int { return o.EnvironmentID }},
	{"register", func(o ir.EnvOperand) *int { return o.Register }},
}

func envOperandFieldNames() string {
	names := make([]string, len(envOperandFields))
	for i, field := range envOperandFields {
		names[i] = field.name
	}
	return strings.Join(names, ", ")
}

// Returns the name a LoadEnv refers to. The first operand field holding a
// bound register wins; if there is none, the function's parent environment
// is used and a warning is recorded.
func (r *resolver) loadName(t ir.LoadEnv) string {
	for _, field := range envOperandFields {
		if reg := field.get(t.Operand); reg != nil {
			if env, ok := r.ctx.Bindings[*reg]; ok {
				return r.slotName(env, t.Slot)
			}
		}
	}
	r.warnf(UnrecognizedOperandType,
		"none of %s holds an environment in load from slot %d; using the parent environment, the name may be wrong",
		envOperandFieldNames(), t.Slot)
	if r.fn.ParentEnv == nil {
		return scope.SlotName(0, t.Slot)
	}
	return r.slotName(r.fn.ParentEnv, t.Slot)
}

// Returns the name of a slot without claiming it, so that a load preceding
// the first store does not turn the store into an assignment.
func (r *resolver) slotName(env *scope.Env, slot int) string {
	if name, ok := env.LookupSlot(slot); ok {
		return name
	}
	if name, ok := r.pending[slotKey{env, slot}]; ok {
		return name
	}
	return scope.SlotName(env.Depth, slot)
}

// Like (*scope.Env).NameForSlot, but new names are held back until commit.
func (r *resolver) nameForSlot(env *scope.Env, slot int) (string, bool) {
	if name, ok := env.LookupSlot(slot); ok {
		return name, false
	}
	key := slotKey{env, slot}
	if name, ok := r.pending[key]; ok {
		return name, false
	}
	name := scope.SlotName(env.Depth, slot)
	r.pending[key] = name
	r.pendingOrder = append(r.pendingOrder, key)
	return name, true
}

func (r *resolver) commit() {
	for _, key := range r.pendingOrder {
		key.env.NameForSlot(key.slot)
	}
}

func (r *resolver) context() diag.Context {
	return *diag.NewContext(r.fn.DisplayName(), r.source, r.ranges[r.stmt])
}

func (r *resolver) errorpf(typ string, cause error, format string, args ...any) {
	// The panic is caught by the recover in Resolve.
	panic(&diag.Error{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
		Context: r.context(),
		Cause:   cause,
	})
}

func (r *resolver) warnf(typ string, format string, args ...any) {
	w := &diag.Error{Type: typ, Message: fmt.Sprintf(format, args...), Context: r.context()}
	r.ctx.Warnings = append(r.ctx.Warnings, w)
	r.logger.Println(w.Error())
}
