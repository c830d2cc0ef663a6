package envres_test

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nextco/hermes-dec/pkg/diag"
	. "github.com/nextco/hermes-dec/pkg/envres"
	"github.com/nextco/hermes-dec/pkg/ir"
	"github.com/nextco/hermes-dec/pkg/scope"
)

var (
	S   = ir.S
	Reg = ir.Reg
)

func resolve(t *testing.T, fn *ir.FunctionBody) *Context {
	t.Helper()
	ctx, err := Resolve(fn)
	if err != nil {
		t.Fatalf("Resolve -> %v", err)
	}
	return ctx
}

func TestResolve_ScenarioA(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 2, Value: 5}),
	}}
	ctx := resolve(t, fn)

	want := []ir.Statement{
		{},
		S(ir.Raw{Text: "var _closure0_slot2"}, ir.Assign{}, ir.RHSReg{Reg: 5}),
	}
	if diff := cmp.Diff(want, fn.Statements); diff != "" {
		t.Errorf("statements (-want +got):\n%s", diff)
	}
	if got, want := fn.Text(), "var _closure0_slot2 = r5\n"; got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	env, ok := ctx.Env(0)
	if !ok || env.Depth != 0 || env.Parent != nil {
		t.Errorf("r0 bound to %v, want a root environment", env)
	}
}

func TestResolve_ScenarioB(t *testing.T) {
	outer := &ir.FunctionBody{Index: 0, Statements: []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 2, Value: 5}),
		S(ir.LHSReg{Reg: 3}, ir.Assign{}, ir.Closure{Function: 7, EnvReg: Reg(0)}),
	}}
	outerCtx := resolve(t, outer)

	if len(outerCtx.Links) != 1 || outerCtx.Links[0].Function != 7 {
		t.Fatalf("Links = %v, want one link to function 7", outerCtx.Links)
	}
	outerEnv, _ := outerCtx.Env(0)
	if outerCtx.Links[0].Env != outerEnv {
		t.Errorf("link carries %p, want the environment of r0 %p", outerCtx.Links[0].Env, outerEnv)
	}
	// The closure instruction itself is rendered by a later pass.
	if got, want := outer.Statements[2].String(), "r3 = closure#7(r0)"; got != want {
		t.Errorf("closure statement rendered as %q, want %q", got, want)
	}

	inner := &ir.FunctionBody{Index: 7, ParentEnv: outerCtx.Links[0].Env, Statements: []ir.Statement{
		S(ir.GetEnv{Dest: 1, Hops: 0}),
		S(ir.LHSReg{Reg: 9}, ir.Assign{}, ir.LoadEnv{Operand: ir.EnvOperand{EnvRegister: Reg(1)}, Slot: 2, Dest: 9}),
	}}
	innerCtx := resolve(t, inner)

	if env, _ := innerCtx.Env(1); env != outerEnv {
		t.Errorf("r1 bound to %v, want the outer environment", env)
	}
	if got, want := inner.Text(), "r9 = _closure0_slot2\n"; got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	if len(innerCtx.Warnings) > 0 {
		t.Errorf("unexpected warnings: %v", innerCtx.Warnings)
	}
}

func TestResolve_ScenarioC(t *testing.T) {
	original := []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 1, Value: 1}),
		S(ir.StoreEnv{Env: 3, Slot: 0, Value: 2}),
	}
	fn := &ir.FunctionBody{Index: 4, Statements: append([]ir.Statement(nil), original...)}
	ctx, err := Resolve(fn)

	var derr *diag.Error
	if !errors.As(err, &derr) || derr.Type != MissingBindingType {
		t.Fatalf("Resolve -> %v, want a %q error", err, MissingBindingType)
	}
	var missing *MissingBinding
	if !errors.As(err, &missing) || *missing != (MissingBinding{Register: 3, Function: 4, Statement: 2}) {
		t.Errorf("cause is %v, want r3 at statement 2 of function #4", missing)
	}
	if got, want := derr.Error(), "missing environment binding: function #4:3: r3 is not bound to an environment"; got != want {
		t.Errorf("Error() -> %q, want %q", got, want)
	}
	if diff := cmp.Diff(original, fn.Statements); diff != "" {
		t.Errorf("statements changed after failure (-want +got):\n%s", diff)
	}
	// The store before the failure did not claim its slot.
	env, _ := ctx.Env(0)
	if _, ok := env.LookupSlot(1); ok {
		t.Errorf("slot 1 named although resolution failed")
	}
}

func TestResolve_ScenarioD(t *testing.T) {
	parent := scope.New(scope.New(nil))
	fn := &ir.FunctionBody{ParentEnv: parent, Statements: []ir.Statement{
		S(ir.GetEnv{Dest: 4, Hops: 3}),
	}}
	_, err := Resolve(fn)

	var derr *diag.Error
	if !errors.As(err, &derr) || derr.Type != ChainUnderflowType {
		t.Fatalf("Resolve -> %v, want a %q error", err, ChainUnderflowType)
	}
	var underflow *scope.ChainUnderflow
	if !errors.As(err, &underflow) || *underflow != (scope.ChainUnderflow{Requested: 3, Available: 1}) {
		t.Errorf("cause is %v, want 3 hops requested with 1 available", underflow)
	}
}

func TestResolve_GetEnvWithoutParent(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{S(ir.GetEnv{Dest: 0, Hops: 0})}}
	_, err := Resolve(fn)
	if e := GetResolutionError(err); e == nil || e.Type != ChainUnderflowType {
		t.Errorf("Resolve -> %v, want a %q error", err, ChainUnderflowType)
	}
}

func TestResolve_DeclarationThenAssignment(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 1}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 2}),
		S(ir.StoreEnv{Env: 0, Slot: 1, Value: 3}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 4}),
	}}
	resolve(t, fn)

	want := strings.Join([]string{
		"var _closure0_slot0 = r1",
		"_closure0_slot0 = r2",
		"var _closure0_slot1 = r3",
		"_closure0_slot0 = r4",
		"",
	}, "\n")
	if got := fn.Text(); got != want {
		t.Errorf("Text() ->\n%s\nwant\n%s", got, want)
	}
}

func TestResolve_StoreToCapturedSlotIsAssignment(t *testing.T) {
	parent := scope.New(nil)
	parent.NameForSlot(0)
	fn := &ir.FunctionBody{ParentEnv: parent, Statements: []ir.Statement{
		S(ir.GetEnv{Dest: 0, Hops: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 1}),
		S(ir.StoreEnv{Env: 0, Slot: 3, Value: 2}),
	}}
	resolve(t, fn)

	want := "_closure0_slot0 = r1\nvar _closure0_slot3 = r2\n"
	if got := fn.Text(); got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	if _, ok := parent.LookupSlot(3); !ok {
		t.Errorf("slot 3 of the parent environment not named after success")
	}
}

func TestResolve_InnerEnvironment(t *testing.T) {
	parent := scope.New(nil)
	fn := &ir.FunctionBody{ParentEnv: parent, Statements: []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.NewInnerEnv{Dest: 1, Parent: 0}),
		S(ir.StoreEnv{Env: 1, Slot: 0, Value: 2}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 3}),
	}}
	ctx := resolve(t, fn)

	env0, _ := ctx.Env(0)
	env1, _ := ctx.Env(1)
	if env0.Parent != parent || env0.Depth != 1 {
		t.Errorf("r0 bound to %v under %v, want depth 1 under the parent", env0, env0.Parent)
	}
	if env1.Parent != env0 || env1.Depth != 2 {
		t.Errorf("r1 bound to %v under %v, want depth 2 under r0", env1, env1.Parent)
	}
	// Both creations are silenced.
	want := "var _closure2_slot0 = r2\nvar _closure1_slot0 = r3\n"
	if got := fn.Text(); got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	if len(fn.Statements[1].Tokens) != 0 {
		t.Errorf("inner environment creation not silenced: %v", fn.Statements[1])
	}
}

func TestResolve_InnerEnvironmentOfUnboundRegister(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{S(ir.NewInnerEnv{Dest: 1, Parent: 0})}}
	if _, err := Resolve(fn); GetResolutionError(err) == nil {
		t.Errorf("Resolve -> %v, want a resolution error", err)
	}
}

func TestResolve_ClosureWithUnboundRegister(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.LHSReg{Reg: 1}, ir.Assign{}, ir.Closure{Function: 2, EnvReg: Reg(5)}),
	}}
	_, err := Resolve(fn)
	var missing *MissingBinding
	if !errors.As(err, &missing) || missing.Register != 5 {
		t.Errorf("Resolve -> %v, want r5 missing", err)
	}
}

func TestResolve_ClosureWithoutEnvironment(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.LHSReg{Reg: 1}, ir.Assign{}, ir.Closure{Function: 2}),
	}}
	ctx := resolve(t, fn)
	if len(ctx.Links) != 0 {
		t.Errorf("Links = %v, want none", ctx.Links)
	}
}

var operandTests = []struct {
	name    string
	operand ir.EnvOperand
	// Register whose environment the load should resolve to; -1 for the
	// parent environment.
	wantEnv  int
	wantWarn bool
}{
	{"env_register", ir.EnvOperand{EnvRegister: Reg(0)}, 0, false},
	{"environment_register", ir.EnvOperand{EnvironmentRegister: Reg(1)}, 1, false},
	{"environment_id", ir.EnvOperand{EnvironmentID: Reg(0)}, 0, false},
	{"register", ir.EnvOperand{Register: Reg(1)}, 1, false},
	{"priority", ir.EnvOperand{EnvRegister: Reg(1), Register: Reg(0)}, 1, false},
	{"unbound field skipped", ir.EnvOperand{EnvRegister: Reg(8), EnvironmentID: Reg(0)}, 0, false},
	{"no field", ir.EnvOperand{}, -1, true},
	{"only unbound fields", ir.EnvOperand{Register: Reg(8)}, -1, true},
}

func TestResolve_LoadOperand(t *testing.T) {
	for _, test := range operandTests {
		t.Run(test.name, func(t *testing.T) {
			parent := scope.New(nil)
			fn := &ir.FunctionBody{ParentEnv: parent, Statements: []ir.Statement{
				S(ir.NewEnv{Dest: 0}),
				S(ir.NewInnerEnv{Dest: 1, Parent: 0}),
				S(ir.LoadEnv{Operand: test.operand, Slot: 4, Dest: 7}),
			}}
			ctx := resolve(t, fn)

			depth := parent.Depth
			if test.wantEnv >= 0 {
				env, _ := ctx.Env(test.wantEnv)
				depth = env.Depth
			}
			want := "r7 = " + scope.SlotName(depth, 4) + "\n"
			if got := fn.Text(); got != want {
				t.Errorf("Text() -> %q, want %q", got, want)
			}
			if gotWarn := len(ctx.Warnings) > 0; gotWarn != test.wantWarn {
				t.Errorf("warnings = %v, want warning: %v", ctx.Warnings, test.wantWarn)
			}
		})
	}
}

func TestResolve_LoadFallbackWithoutParent(t *testing.T) {
	var buf bytes.Buffer
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.LHSReg{Reg: 2}, ir.Assign{}, ir.LoadEnv{Slot: 1, Dest: 2}),
	}}
	ctx, err := Resolve(fn, WithLogger(log.New(&buf, "", 0)))
	if err != nil {
		t.Fatalf("Resolve -> %v", err)
	}
	if got, want := fn.Text(), "r2 = _closure0_slot1\n"; got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	if len(ctx.Warnings) != 1 || ctx.Warnings[0].Type != UnrecognizedOperandType {
		t.Fatalf("Warnings = %v, want one %q", ctx.Warnings, UnrecognizedOperandType)
	}
	if !strings.Contains(buf.String(), UnrecognizedOperandType) {
		t.Errorf("log %q does not mention the warning", buf.String())
	}
}

func TestResolve_LoadBeforeStoreKeepsDeclaration(t *testing.T) {
	fn := &ir.FunctionBody{Statements: []ir.Statement{
		S(ir.NewEnv{Dest: 0}),
		S(ir.LoadEnv{Operand: ir.EnvOperand{EnvRegister: Reg(0)}, Slot: 0, Dest: 1}),
		S(ir.StoreEnv{Env: 0, Slot: 0, Value: 2}),
	}}
	resolve(t, fn)
	want := "r1 = _closure0_slot0\nvar _closure0_slot0 = r2\n"
	if got := fn.Text(); got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
}

func TestResolve_PassThrough(t *testing.T) {
	statements := []ir.Statement{
		S(ir.LHSReg{Reg: 1}, ir.Assign{}, ir.Raw{Text: "f"}, ir.LParen{}, ir.RHSReg{Reg: 2}, ir.RParen{}),
		S(ir.Throw{Reg: 1}),
		S(ir.Return{Reg: 1}),
	}
	fn := &ir.FunctionBody{Statements: append([]ir.Statement(nil), statements...)}
	resolve(t, fn)
	if diff := cmp.Diff(statements, fn.Statements); diff != "" {
		t.Errorf("pass-through statements changed (-want +got):\n%s", diff)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	build := func() *ir.FunctionBody {
		return &ir.FunctionBody{ParentEnv: scope.New(nil), Statements: []ir.Statement{
			S(ir.NewEnv{Dest: 0}),
			S(ir.NewInnerEnv{Dest: 1, Parent: 0}),
			S(ir.StoreEnv{Env: 1, Slot: 3, Value: 2}),
			S(ir.StoreEnv{Env: 0, Slot: 1, Value: 2}),
			S(ir.StoreEnv{Env: 1, Slot: 3, Value: 4}),
			S(ir.LoadEnv{Operand: ir.EnvOperand{Register: Reg(1)}, Slot: 3, Dest: 5}),
		}}
	}
	a, b := build(), build()
	resolve(t, a)
	resolve(t, b)
	if diff := cmp.Diff(a.Statements, b.Statements); diff != "" {
		t.Errorf("two runs differ (-first +second):\n%s", diff)
	}
	if a.Text() != b.Text() {
		t.Errorf("two runs render differently")
	}
}

func TestResolve_LiteralParentEnv(t *testing.T) {
	parent := &scope.Env{}
	fn := &ir.FunctionBody{ParentEnv: parent, Statements: []ir.Statement{
		S(ir.GetEnv{Dest: 0, Hops: 0}),
		S(ir.StoreEnv{Env: 0, Slot: 1, Value: 2}),
	}}
	resolve(t, fn)

	if got, want := fn.Text(), "var _closure0_slot1 = r2\n"; got != want {
		t.Errorf("Text() -> %q, want %q", got, want)
	}
	if _, ok := parent.LookupSlot(1); !ok {
		t.Errorf("slot 1 of a literal parent environment not named")
	}
}

func TestResolve_LiteralParentChainUnderflow(t *testing.T) {
	fn := &ir.FunctionBody{ParentEnv: &scope.Env{Parent: scope.New(nil)}, Statements: []ir.Statement{
		S(ir.GetEnv{Dest: 0, Hops: 2}),
	}}
	_, err := Resolve(fn)
	var underflow *scope.ChainUnderflow
	if !errors.As(err, &underflow) || *underflow != (scope.ChainUnderflow{Requested: 2, Available: 1}) {
		t.Errorf("Resolve -> %v, want 2 hops requested with 1 available", err)
	}
}
