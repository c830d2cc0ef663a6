// Package progtest provides a framework for testing implementations of
// prog.Program.
package progtest

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextco/hermes-dec/pkg/prog"
)

// Case is a test case that can be used in Test.
type Case struct {
	args  []string
	want  result
	check struct{ stdoutContains, stderrContains bool }
}

type result struct {
	exitStatus     int
	stdout, stderr string
}

// ThatEnvres returns a new Case with the specified CLI arguments.
//
// The new Case expects the program run to exit with 0, and write nothing to
// stdout or stderr.
func ThatEnvres(args ...string) Case {
	return Case{args: append([]string{"envres"}, args...)}
}

// DoesNothing returns c itself. It is useful to mark that a case expects the
// program run to exit with 0 and write nothing.
func (c Case) DoesNothing() Case {
	return c
}

// ExitsWith returns an altered Case that requires the program run to return
// with the given exit status.
func (c Case) ExitsWith(code int) Case {
	c.want.exitStatus = code
	return c
}

// WritesStdout returns an altered Case that requires the program run to write
// exactly the given text to stdout.
func (c Case) WritesStdout(s string) Case {
	c.want.stdout = s
	c.check.stdoutContains = false
	return c
}

// WritesStdoutContaining returns an altered Case that requires the program run
// to write output to stdout that contains the given text as a substring.
func (c Case) WritesStdoutContaining(s string) Case {
	c.want.stdout = s
	c.check.stdoutContains = true
	return c
}

// WritesStderr returns an altered Case that requires the program run to write
// exactly the given text to stderr.
func (c Case) WritesStderr(s string) Case {
	c.want.stderr = s
	c.check.stderrContains = false
	return c
}

// WritesStderrContaining returns an altered Case that requires the program run
// to write output to stderr that contains the given text as a substring.
func (c Case) WritesStderrContaining(s string) Case {
	c.want.stderr = s
	c.check.stderrContains = true
	return c
}

// Test runs test cases against a given program.
func Test(t *testing.T, p prog.Program, cases ...Case) {
	t.Helper()
	for _, c := range cases {
		t.Run(strings.Join(c.args, " "), func(t *testing.T) {
			t.Helper()
			r := run(t, p, c.args)
			if r.exitStatus != c.want.exitStatus {
				t.Errorf("got exit status %v, want %v", r.exitStatus, c.want.exitStatus)
			}
			checkOutput(t, "stdout", r.stdout, c.want.stdout, c.check.stdoutContains)
			checkOutput(t, "stderr", r.stderr, c.want.stderr, c.check.stderrContains)
		})
	}
}

func checkOutput(t *testing.T, name, got, want string, contains bool) {
	t.Helper()
	if contains {
		if !strings.Contains(got, want) {
			t.Errorf("got %s %q, want one containing %q", name, got, want)
		}
	} else if got != want {
		t.Errorf("got %s %q, want %q", name, got, want)
	}
}

// Run runs a Program with the given arguments and returns its exit status,
// stdout and stderr.
func Run(t *testing.T, p prog.Program, args ...string) (int, string, string) {
	t.Helper()
	r := run(t, p, append([]string{"envres"}, args...))
	return r.exitStatus, r.stdout, r.stderr
}

// Output goes to files rather than pipes, so a program writing a lot of
// output cannot block.
func run(t *testing.T, p prog.Program, args []string) result {
	t.Helper()
	dir := t.TempDir()
	stdin, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatal(err)
	}
	defer stdin.Close()
	stdout := create(t, filepath.Join(dir, "stdout"))
	stderr := create(t, filepath.Join(dir, "stderr"))

	exit := prog.Run([3]*os.File{stdin, stdout, stderr}, args, p)
	return result{exit, readAll(t, stdout), readAll(t, stderr)}
}

func create(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func readAll(t *testing.T, f *os.File) string {
	t.Helper()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
