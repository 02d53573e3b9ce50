package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM. After the first signal the
	// default handler is restored, so a second one ends the process at once.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	context.AfterFunc(ctx, stop)

	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
