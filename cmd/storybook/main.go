package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/imrishuroy/storybook-orderflow/internal/config"
	"github.com/imrishuroy/storybook-orderflow/internal/logging"
)

const usage = `usage: storybook <command> [flags]

commands:
  products   list the storybook tiers
  arrange    choose a tier and title, and open an order
  checkout   upload photos, add shipping details and submit the open order
  orders     list the orders placed with an email address
`

func main() {
	os.Exit(runWithSignals(os.Args[1:]))
}

// runWithSignals releases the signal context before main exits.
func runWithSignals(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	logger := logging.New(logging.Options{Service: "storybook-cli", Env: cfg.AppEnv, Level: cfg.LogLevel, Text: true, Output: stderr})
	app, err := newApp(cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "storybook: %v\n", err)
		return 1
	}

	var cmdErr error
	switch args[0] {
	case "products":
		cmdErr = app.products(ctx, args[1:])
	case "arrange":
		cmdErr = app.arrange(ctx, args[1:])
	case "checkout":
		cmdErr = app.checkout(ctx, args[1:])
	case "orders":
		cmdErr = app.orders(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "storybook: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if cmdErr != nil {
		fmt.Fprintf(stderr, "storybook %s: %v\n", args[0], cmdErr)
		return 1
	}
	return 0
}
