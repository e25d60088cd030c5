// Command importctl validates and imports daily activity CSV files from the
// command line, using the same pipeline as the web API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

const (
	exitOK         = 0
	exitFailed     = 1 // validation or save failures
	exitUsage      = 2
	exitConnection = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailed
}

func main() {
	cmd := newRootCmd(newApp(os.Stdout, os.Stderr))
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
