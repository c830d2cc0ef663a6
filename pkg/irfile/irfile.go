// Package irfile reads programs in the statement/token IR from YAML.
//
// A file looks like this:
//
//	functions:
//	  - index: 0
//	    name: global
//	    statements:
//	      - [{new_env: {dest: 0}}]
//	      - [{store_env: {env: 0, slot: 2, value: 5}}]
//	      - [{lhs: 1}, {assign: {}}, {closure: {function: 1, env: 0}}]
//
// Every token is a mapping with a single key naming its kind. The operand of
// load_env may be given under any of env_register, environment_register,
// environment_id and register, the names used by different revisions of the
// IR builder.
package irfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nextco/hermes-dec/pkg/decomp"
	"github.com/nextco/hermes-dec/pkg/ir"
)

type fileDisk struct {
	Functions []functionDisk `yaml:"functions"`
}

type functionDisk struct {
	Index      *int          `yaml:"index"`
	Name       string        `yaml:"name"`
	Statements [][]tokenDisk `yaml:"statements"`
}

type tokenDisk struct {
	token ir.Token
}

// LoadFile reads a program from the named file.
func LoadFile(path string) (*decomp.Program, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Load(path, file)
}

// Load reads a program from r. The name is used in error messages.
func Load(name string, r io.Reader) (*decomp.Program, error) {
	var raw fileDisk
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	functions := make([]*ir.FunctionBody, len(raw.Functions))
	for i, f := range raw.Functions {
		index := i
		if f.Index != nil {
			index = *f.Index
		}
		if index < 0 || index >= len(functions) {
			return nil, fmt.Errorf("%s: function index %d out of range [0, %d)",
				name, index, len(functions))
		}
		if functions[index] != nil {
			return nil, fmt.Errorf("%s: duplicate function index %d", name, index)
		}
		fn := &ir.FunctionBody{Index: index, Name: f.Name}
		for _, s := range f.Statements {
			tokens := make([]ir.Token, len(s))
			for j, t := range s {
				tokens[j] = t.token
			}
			fn.Statements = append(fn.Statements, ir.Statement{Tokens: tokens})
		}
		functions[index] = fn
	}
	return &decomp.Program{Functions: functions}, nil
}

// UnmarshalYAML decodes a single-key mapping into a token.
func (t *tokenDisk) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return errorf(node, "token must be a mapping with exactly one key")
	}
	kind, body := node.Content[0].Value, node.Content[1]
	var err error
	switch kind {
	case "raw":
		var text string
		err = body.Decode(&text)
		t.token = ir.Raw{Text: text}
	case "assign":
		t.token, err = ir.Assign{}, empty(body)
	case "lparen":
		t.token, err = ir.LParen{}, empty(body)
	case "rparen":
		t.token, err = ir.RParen{}, empty(body)
	case "lhs":
		var reg int
		err = body.Decode(&reg)
		t.token = ir.LHSReg{Reg: reg}
	case "rhs":
		var reg int
		err = body.Decode(&reg)
		t.token = ir.RHSReg{Reg: reg}
	case "return":
		var reg int
		err = body.Decode(&reg)
		t.token = ir.Return{Reg: reg}
	case "throw":
		var reg int
		err = body.Decode(&reg)
		t.token = ir.Throw{Reg: reg}
	case "new_env":
		var f fields
		if f, err = parseFields(body, []string{"dest"}, nil); err == nil {
			t.token = ir.NewEnv{Dest: f.get("dest")}
		}
	case "new_inner_env":
		var f fields
		if f, err = parseFields(body, []string{"dest", "parent"}, nil); err == nil {
			t.token = ir.NewInnerEnv{Dest: f.get("dest"), Parent: f.get("parent")}
		}
	case "get_env":
		var f fields
		if f, err = parseFields(body, []string{"dest", "hops"}, nil); err == nil {
			t.token = ir.GetEnv{Dest: f.get("dest"), Hops: f.get("hops")}
		}
	case "closure":
		var f fields
		if f, err = parseFields(body, []string{"function"}, []string{"env"}); err == nil {
			t.token = ir.Closure{Function: f.get("function"), EnvReg: f["env"]}
		}
	case "store_env":
		var f fields
		if f, err = parseFields(body, []string{"env", "slot", "value"}, nil); err == nil {
			t.token = ir.StoreEnv{Env: f.get("env"), Slot: f.get("slot"), Value: f.get("value")}
		}
	case "load_env":
		var f fields
		optional := []string{"env_register", "environment_register", "environment_id", "register"}
		if f, err = parseFields(body, []string{"slot", "dest"}, optional); err == nil {
			t.token = ir.LoadEnv{
				Operand: ir.EnvOperand{
					EnvRegister:         f["env_register"],
					EnvironmentRegister: f["environment_register"],
					EnvironmentID:       f["environment_id"],
					Register:            f["register"],
				},
				Slot: f.get("slot"),
				Dest: f.get("dest"),
			}
		}
	default:
		return errorf(node, "unknown token kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("%s token: %w", kind, err)
	}
	return nil
}

// Integer operands of a token, by key.
type fields map[string]*int

func (f fields) get(key string) int { return *f[key] }

func parseFields(node *yaml.Node, required, optional []string) (fields, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errorf(node, "operands must be a mapping")
	}
	allowed := make(map[string]bool)
	for _, key := range append(append([]string(nil), required...), optional...) {
		allowed[key] = true
	}
	f := make(fields)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if !allowed[key.Value] {
			return nil, errorf(key, "unknown operand %q", key.Value)
		}
		var v int
		if err := value.Decode(&v); err != nil {
			return nil, err
		}
		f[key.Value] = &v
	}
	for _, key := range required {
		if f[key] == nil {
			return nil, errorf(node, "missing operand %q", key)
		}
	}
	return f, nil
}

func empty(node *yaml.Node) error {
	switch {
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return nil
	case node.Kind == yaml.MappingNode && len(node.Content) == 0:
		return nil
	}
	return errorf(node, "takes no operands")
}

func errorf(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", node.Line, fmt.Sprintf(format, args...))
}
