// Command eav-warmup generates accessor units for every family of an EAV
// registry and manages the value store backing it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and maps the outcome to an exit code: 0 on success,
// 2 for usage or configuration problems, 1 for anything else.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "eav-warmup: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		_, _ = fmt.Fprintf(stderr, "hint: %s\n", hint)
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitFailure
}

// usageError marks failures caused by arguments, configuration or the
// registry document rather than by the run itself.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}
