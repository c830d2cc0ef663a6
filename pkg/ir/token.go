// Package ir defines the statement/token intermediate representation shared
// by the decompiler passes.
//
// A function body is an ordered list of statements, each an ordered list of
// tokens. Earlier passes produce it already linearized; later passes render
// it to source text.
package ir

import (
	"fmt"

	"github.com/nextco/hermes-dec/pkg/scope"
)

// Token is one unit of a statement. The set of implementations is closed;
// passes switch over all of them.
type Token interface {
	fmt.Stringer
	isToken()
}

// Raw is literal source text.
type Raw struct{ Text string }

// Assign is the assignment operator.
type Assign struct{}

// LHSReg is a register written by a statement.
type LHSReg struct{ Reg int }

// RHSReg is a register read by a statement.
type RHSReg struct{ Reg int }

// LParen and RParen are grouping parentheses.
type (
	LParen struct{}
	RParen struct{}
)

// Return returns the value of a register.
type Return struct{ Reg int }

// Throw throws the value of a register.
type Throw struct{ Reg int }

// NewEnv creates an environment in Dest, nested in the environment the
// current function was defined in.
type NewEnv struct{ Dest int }

// NewInnerEnv creates an environment in Dest, nested in the environment held
// by Parent.
type NewInnerEnv struct{ Dest, Parent int }

// GetEnv loads into Dest the environment Hops levels above the one the
// current function was defined in.
type GetEnv struct{ Dest, Hops int }

// Closure creates a closure of the function with the given function table
// index. EnvReg, when not nil, is the register holding the environment the
// closure captures.
type Closure struct {
	Function int
	EnvReg   *int
}

// StoreEnv stores register Value into a slot of the environment held by Env.
type StoreEnv struct{ Env, Slot, Value int }

// LoadEnv loads a slot of an environment into Dest.
type LoadEnv struct {
	Operand EnvOperand
	Slot    int
	Dest    int
}

// EnvOperand identifies the environment register of a LoadEnv. Different
// revisions of the IR builder filled different fields; at most one is
// normally set, but nothing guarantees it.
type EnvOperand struct {
	EnvRegister         *int
	EnvironmentRegister *int
	EnvironmentID       *int
	Register            *int
}

// Reg returns a pointer to r, for filling optional register fields.
func Reg(r int) *int { return &r }

func (Raw) isToken()         {}
func (Assign) isToken()      {}
func (LHSReg) isToken()      {}
func (RHSReg) isToken()      {}
func (LParen) isToken()      {}
func (RParen) isToken()      {}
func (Return) isToken()      {}
func (Throw) isToken()       {}
func (NewEnv) isToken()      {}
func (NewInnerEnv) isToken() {}
func (GetEnv) isToken()      {}
func (Closure) isToken()     {}
func (StoreEnv) isToken()    {}
func (LoadEnv) isToken()     {}

func (t Raw) String() string    { return t.Text }
func (Assign) String() string   { return " = " }
func (t LHSReg) String() string { return regName(t.Reg) }
func (t RHSReg) String() string { return regName(t.Reg) }
func (LParen) String() string   { return "(" }
func (RParen) String() string   { return ")" }
func (t Return) String() string { return "return " + regName(t.Reg) }
func (t Throw) String() string  { return "throw " + regName(t.Reg) }

func (t NewEnv) String() string {
	return fmt.Sprintf("%s = new_env()", regName(t.Dest))
}

func (t NewInnerEnv) String() string {
	return fmt.Sprintf("%s = new_inner_env(%s)", regName(t.Dest), regName(t.Parent))
}

func (t GetEnv) String() string {
	return fmt.Sprintf("%s = get_env(%d)", regName(t.Dest), t.Hops)
}

func (t Closure) String() string {
	if t.EnvReg == nil {
		return fmt.Sprintf("closure#%d", t.Function)
	}
	return fmt.Sprintf("closure#%d(%s)", t.Function, regName(*t.EnvReg))
}

func (t StoreEnv) String() string {
	return fmt.Sprintf("store_env(%s, %d, %s)",
		regName(t.Env), t.Slot, regName(t.Value))
}

func (t LoadEnv) String() string {
	return fmt.Sprintf("load_env(%s, %d)", t.Operand, t.Slot)
}

func (o EnvOperand) String() string {
	for _, p := range []*int{o.EnvRegister, o.EnvironmentRegister, o.EnvironmentID, o.Register} {
		if p != nil {
			return regName(*p)
		}
	}
	return "?"
}

func regName(r int) string { return fmt.Sprintf("r%d", r) }

// Statement is one line of decompiled output.
type Statement struct {
	Tokens []Token
}

// S builds a Statement from tokens.
func S(tokens ...Token) Statement { return Statement{tokens} }

// FunctionBody is the decompiled body of one function.
type FunctionBody struct {
	// Index in the function table.
	Index int
	Name  string
	// Statements in source order.
	Statements []Statement
	// Environment the function was defined in. Set by the driver from the
	// closure that creates this function; nil for functions created without
	// an environment.
	ParentEnv *scope.Env
}

// DisplayName returns a name suitable for diagnostics.
func (fn *FunctionBody) DisplayName() string {
	if fn.Name == "" {
		return fmt.Sprintf("function #%d", fn.Index)
	}
	return fmt.Sprintf("function #%d (%s)", fn.Index, fn.Name)
}
