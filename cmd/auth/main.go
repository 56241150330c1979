package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	server "github.com/mossvale/menagerie/internal/services/auth/app"
)

func main() {
	addr := flag.String("addr", "", "listen address (defaults to MENAGERIE_AUTH_ADDR or :8087)")
	flag.Parse()

	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(os.Getenv("MENAGERIE_AUTH_ADDR"))
	}
	if listenAddr == "" {
		listenAddr = ":8087"
	}

	log.SetPrefix("[AUTH] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, listenAddr); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
