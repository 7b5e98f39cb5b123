package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandler returns a channel that is closed on SIGINT or SIGTERM,
// and a stop function that releases the handler once the caller is done
func setupSignalHandler(errOut io.Writer) (<-chan struct{}, func()) {
	shutdown := make(chan struct{})
	done := make(chan struct{})

	// Create a channel to receive OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			fmt.Fprintf(errOut, "\nReceived signal: %v\n", sig)
			close(shutdown)
			fmt.Fprintf(errOut, "Stopping scan, no partial results will be reported...\n")
		case <-done:
		}
	}()

	return shutdown, func() { close(done) }
}
