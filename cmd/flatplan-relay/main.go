package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/flatplan/flatplan.go/contrib/relayserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relayserver.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
