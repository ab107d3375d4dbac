package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/notiz/notiz/internal/config"
	"github.com/notiz/notiz/internal/email"
	"github.com/notiz/notiz/internal/sheet"
)

// Exit codes
const (
	exitOK        = 0
	exitFailure   = 1
	exitConfig    = 2
	exitInput     = 3
	exitTransport = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error category to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, sheet.ErrInputFormat):
		return exitInput
	case errors.Is(err, email.ErrTransport):
		return exitTransport
	default:
		return exitFailure
	}
}
