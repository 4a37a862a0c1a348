// internal/recovery/recovery.go
// Package recovery keeps a panic from leaving the light stuck on or the
// terminal without a trace.
package recovery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// ErrPanic wraps a panic recovered by Guard
var ErrPanic = errors.New("panic")

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

func report(r any) {
	_, _ = fmt.Fprintf(stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
}

// HandlePanic should be deferred at the top of main(). It prints the panic
// and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r)
		exit(1)
	}
}

// HandlePanicFunc is HandlePanic with a cleanup run before exiting, e.g.
// switching the light off.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r)
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

// Guard wraps a goroutine body so a panic is returned as an error wrapping
// ErrPanic. Use it with errgroup:
//
//	g.Go(recovery.Guard(func() error {
//		return receiver.Run(ctx, flickers)
//	}))
func Guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
			}
		}()
		return fn()
	}
}
