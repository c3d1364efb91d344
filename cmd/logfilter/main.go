// Command logfilter drops partial cycles from a tab-separated key/value log.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fidde/logcycle/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewFilterCommand(os.Stdout, os.Stderr))
	stop()
	os.Exit(code)
}
