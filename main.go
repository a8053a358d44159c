package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRunner(os.Stdout, os.Stderr), os.Args[1:])
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code: 0 on
// success, 2 when the service rejects the login, 1 otherwise.
func execute(ctx context.Context, r *runner, args []string) int {
	cmd := newRootCommand(r)
	cmd.SetArgs(args)
	cmd.SetOut(r.stdout)
	cmd.SetErr(r.stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			printError(r.stderr, ee.err)
		}
		return ee.code
	}
	printError(r.stderr, err)
	return 1
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}
