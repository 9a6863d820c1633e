package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/registry"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	fmt.Println("Starting chat server...")

	// Create configuration
	config := server.NewConfigFromEnv()

	reg, err := registry.New()
	if err != nil {
		log.Fatalf("Failed to initialize registry: %v", err)
	}

	srv := server.New(config, reg)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start chat server: %v", err)
	}

	gateway := server.NewGateway(config, srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if gateway != nil {
		g.Go(gateway.Start)
	}

	<-gctx.Done()
	log.Println("⚡️ Chat server is shutting down...")

	if gateway != nil {
		if err := gateway.Shutdown(config.ShutdownGrace); err != nil {
			log.Printf("Gateway shutdown error: %v", err)
		}
	}
	if err := srv.Shutdown(config.ShutdownGrace); err != nil {
		log.Printf("Chat server shutdown error: %v", err)
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}

	log.Println("✅ Server has been shut down gracefully.")
}
