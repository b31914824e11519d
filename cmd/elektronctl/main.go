// Command elektronctl is the Elektron command-line companion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/MrWong99/elektron/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
