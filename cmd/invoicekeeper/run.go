package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/fx"
)

const exitFailure = 1

type application interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Done() <-chan os.Signal
}

var exit = os.Exit

func run(ctx context.Context, app *fx.App) {
	if code := serve(ctx, app, os.Stderr); code != 0 {
		exit(code)
	}
}

// serve starts app, blocks until ctx is cancelled or fx requests shutdown, and
// stops it with a fresh context so hooks get their own deadlines.
func serve(ctx context.Context, app application, stderr io.Writer) int {
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "failed to start invoicekeeper: %v\n", err)
		return exitFailure
	}

	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	if err := app.Stop(context.Background()); err != nil {
		fmt.Fprintf(stderr, "failed to stop invoicekeeper: %v\n", err)
		return exitFailure
	}
	return 0
}
