// Package report implements the envres program: it loads a program from a
// YAML file, resolves closure variables in all its function bodies and reports
// the result.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/nextco/hermes-dec/pkg/decomp"
	"github.com/nextco/hermes-dec/pkg/diag"
	"github.com/nextco/hermes-dec/pkg/errutil"
	"github.com/nextco/hermes-dec/pkg/irfile"
	"github.com/nextco/hermes-dec/pkg/logutil"
	"github.com/nextco/hermes-dec/pkg/prog"
	"github.com/nextco/hermes-dec/pkg/store"
	"github.com/nextco/hermes-dec/pkg/store/storedefs"
)

var logger = logutil.GetLogger("[report] ")

// Program is the envres program.
type Program struct{}

func (Program) Run(fds [3]*os.File, f *prog.Flags, args []string) error {
	if len(args) != 1 {
		return prog.BadUsage("need exactly one program file")
	}
	styled, err := useColor(f.Color, fds[2])
	if err != nil {
		return err
	}
	diag.SetStyled(styled)

	p, err := irfile.LoadFile(args[0])
	if err != nil {
		return err
	}
	res := p.Resolve()
	logger.Printf("resolved %d functions, %d failed", len(res.Order), len(res.Errors))

	if f.DB != "" {
		if err := save(f.DB, p, res); err != nil {
			return fmt.Errorf("save to %s: %w", f.DB, err)
		}
	}

	if f.JSON {
		err = writeJSON(fds[1], p, res)
	} else {
		err = writeText(fds[1], p, res)
	}
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		diag.ShowError(fds[2], w.Err)
	}
	for _, err := range errutil.Errors(res.Err()) {
		diag.ShowError(fds[2], err)
	}
	if len(res.Errors) > 0 {
		return prog.Exit(1)
	}
	return nil
}

func useColor(mode string, stderr *os.File) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto", "":
		fd := stderr.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	}
	return false, prog.BadUsage(fmt.Sprintf("bad value for -color: %q", mode))
}

// Indices of failed functions in ascending order.
func failed(res *decomp.Result) []int {
	var indices []int
	for i := 0; len(indices) < len(res.Errors); i++ {
		if _, ok := res.Errors[i]; ok {
			indices = append(indices, i)
		}
	}
	return indices
}

func writeText(w io.Writer, p *decomp.Program, res *decomp.Result) error {
	var sb strings.Builder
	for i, fn := range p.Functions {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fn.DisplayName())
		if _, ok := res.Errors[i]; ok {
			sb.WriteString(", unresolved")
		}
		sb.WriteString(":\n")
		for _, line := range strings.SplitAfter(fn.Text(), "\n") {
			if line != "" {
				sb.WriteString("\t" + line)
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

type functionJSON struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type warningJSON struct {
	Function int    `json:"function"`
	Type     string `json:"type"`
	Message  string `json:"message"`
}

type reportJSON struct {
	Order     []int          `json:"order"`
	Functions []functionJSON `json:"functions"`
	Warnings  []warningJSON  `json:"warnings"`
}

func writeJSON(w io.Writer, p *decomp.Program, res *decomp.Result) error {
	r := reportJSON{
		Order:     append([]int{}, res.Order...),
		Functions: []functionJSON{},
		Warnings:  []warningJSON{},
	}
	for i, fn := range p.Functions {
		f := functionJSON{Index: i, Name: fn.Name, Text: fn.Text()}
		if err, ok := res.Errors[i]; ok {
			f.Error = err.Error()
		}
		r.Functions = append(r.Functions, f)
	}
	for _, warn := range res.Warnings {
		r.Warnings = append(r.Warnings,
			warningJSON{warn.Function, warn.Err.Type, warn.Err.Message})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Saves resolved functions and all diagnostics. Functions that failed are
// not saved.
func save(path string, p *decomp.Program, res *decomp.Result) error {
	st, err := store.NewStore(path)
	if err != nil {
		return err
	}
	defer st.Close()
	for _, index := range res.Order {
		if _, ok := res.Errors[index]; ok {
			continue
		}
		fn := p.Functions[index]
		err := st.PutFunction(storedefs.Function{Index: index, Name: fn.Name, Text: fn.Text()})
		if err != nil {
			return err
		}
	}
	for _, w := range res.Warnings {
		if _, err := st.AddDiagnostic(storedefs.Diagnostic{Function: w.Function, Message: w.Err.Error()}); err != nil {
			return err
		}
	}
	for _, index := range failed(res) {
		d := storedefs.Diagnostic{Function: index, Message: res.Errors[index].Error()}
		if _, err := st.AddDiagnostic(d); err != nil {
			return err
		}
	}
	return nil
}
