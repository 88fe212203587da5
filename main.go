// netconsole - an embeddable TCP line-oriented command console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"netconsole/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "netconsole: %v\n", err)
		os.Exit(1)
	}
}
