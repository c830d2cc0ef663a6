// Package diag contains building blocks for formatting and processing
// diagnostics produced by the decompiler passes.
package diag

import (
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

// Error represents an error with context that can be showed.
type Error struct {
	Type    string
	Message string
	Context Context
	// Underlying typed error, if any.
	Cause error
}

// Error returns a plain text representation of the error.
func (e *Error) Error() string {
	if e.Context.checkPosition() != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Context.Name, e.Message)
	}
	begin, _ := e.Context.lines()
	return fmt.Sprintf("%s: %s:%d: %s", e.Type, e.Context.Name, begin, e.Message)
}

// Unwrap returns the underlying typed error.
func (e *Error) Unwrap() error { return e.Cause }

// Range returns the range of the error.
func (e *Error) Range() Ranging {
	return e.Context.Range()
}

// Show shows the error.
func (e *Error) Show(indent string) string {
	header := fmt.Sprintf("%s: %s%s%s\n", title(e.Type), messageStart, e.Message, messageEnd)
	return header + indent + "  " + e.Context.ShowCompact(indent+"  ")
}

// Shower wraps the Show function.
type Shower interface {
	// Show takes an indentation string and shows.
	Show(indent string) string
}

// ShowError shows an error to w. It uses the Show method if the error
// implements Shower, and writes the styled error message otherwise.
func ShowError(w io.Writer, err error) {
	if shower, ok := err.(Shower); ok {
		fmt.Fprintln(w, shower.Show(""))
	} else {
		fmt.Fprintf(w, "%s%s%s\n", messageStart, err.Error(), messageEnd)
	}
}

func title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size == 0 {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}
