package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ipsweep/internal/app"

	"github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args[1:])
	stop()

	code := app.ExitCode(err)
	if code != app.ExitOK {
		log.Error("application terminated", "error", err)
	}
	os.Exit(code)
}
