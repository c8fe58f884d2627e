// agilisctl drives an Agilis piezo motion controller from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/arloliu/go-agilis/cmd/agilisctl/cmd"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt)
	go func() {
		s := <-quitChan
		fmt.Fprintf(os.Stderr, "got %v, exiting\n", s)
		cancel()
		// a measurement can hold the port for two minutes
		<-time.After(10 * time.Second)
		fmt.Fprintln(os.Stderr, "took too long to shut down, forcefully exiting")
		os.Exit(1)
	}()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
