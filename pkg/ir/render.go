package ir

import (
	"strings"

	"github.com/nextco/hermes-dec/pkg/diag"
)

func (s Statement) String() string {
	var sb strings.Builder
	for _, t := range s.Tokens {
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Text renders the statements of fn, one per line, skipping empty ones.
func (fn *FunctionBody) Text() string {
	var sb strings.Builder
	for _, s := range fn.Statements {
		if len(s.Tokens) == 0 {
			continue
		}
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Source renders every statement of fn on its own line, including empty ones,
// and returns the range each statement occupies in the result. It is used as
// the source of diagnostics pointing at statements.
func (fn *FunctionBody) Source() (string, []diag.Ranging) {
	var sb strings.Builder
	ranges := make([]diag.Ranging, len(fn.Statements))
	for i, s := range fn.Statements {
		from := sb.Len()
		sb.WriteString(s.String())
		ranges[i] = diag.Ranging{From: from, To: sb.Len()}
		sb.WriteByte('\n')
	}
	return sb.String(), ranges
}
