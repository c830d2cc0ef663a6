// Envres names the variables captured by closures in a decompiled program.
// It reads the program from a YAML file, rewrites the environment
// instructions of every function body and prints the result.
package main

import (
	"os"

	"github.com/nextco/hermes-dec/pkg/prog"
	"github.com/nextco/hermes-dec/pkg/report"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args, report.Program{}))
}
