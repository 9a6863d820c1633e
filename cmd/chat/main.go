package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/roomchat/internal/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "chat server address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := client.Run(ctx, *addr, os.Stdin, os.Stdout)
	switch {
	case err == nil, errors.Is(err, io.EOF):
	case errors.Is(err, client.ErrServerUnreachable):
		fmt.Fprintln(os.Stderr, "Unable to connect to the server. Is it running?")
		os.Exit(1)
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		// Interrupted; the connection was closed on the way out.
	default:
		fmt.Fprintf(os.Stderr, "Session ended: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Disconnected successfully!")
}
