// Command log2tsv pivots a tab-separated key/value log into a table with
// one column per key.
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
	code := cli.Execute(ctx, cli.NewPivotCommand(os.Stdout, os.Stderr))
	stop()
	os.Exit(code)
}
