// vtrelay - a TCP relay for VT100 data terminals.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vtrelay/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "vtrelay: %v\n", err)
		os.Exit(1)
	}
}
