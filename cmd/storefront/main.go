// Command storefront is a terminal client for the storefront backend:
// cart, sign-in, checkout handoff and the shopper's account pages.
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

	"go.uber.org/zap"

	"github.com/example/storefront/internal/apiclient"
	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/profile"
	"github.com/example/storefront/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// env is what a command runs against. The app is built on first use so
// commands that only need config (events tail) open no storage.
type env struct {
	cfg     *config.Config
	out     io.Writer
	options []app.Option
	app     *app.App
}

func (e *env) App(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	opts := append([]app.Option{app.WithNavigator(checkout.WriterNavigator{W: e.out})}, e.options...)
	a, err := app.New(ctx, e.cfg, opts...)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...app.Option) int {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (default: storefront.toml in . or ~/.storefront)")
	metricsFile := fs.String("metrics-file", "", "Write client metrics in Prometheus text format to this file on exit")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return 2
	}
	cmd, ok := findCommand(rest[0])
	if !ok {
		fmt.Fprintf(stderr, "Unknown command %q\n\n", rest[0])
		printUsage(stderr, fs)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	e := &env{cfg: cfg, out: stdout, options: opts}
	defer func() {
		if e.app != nil {
			if err := e.app.Close(); err != nil {
				e.app.Logger.Warn("failed to close resources", zap.Error(err))
			}
		}
	}()

	cmdErr := cmd.run(ctx, e, rest[1:])

	if *metricsFile != "" && e.app != nil {
		if err := e.app.WriteMetrics(*metricsFile); err != nil {
			fmt.Fprintf(stderr, "Failed to write metrics: %v\n", err)
		}
	}

	if cmdErr != nil {
		var uerr usageError
		if errors.As(cmdErr, &uerr) {
			fmt.Fprintf(stderr, "%s\nUsage: storefront %s\n", uerr.msg, cmd.usage)
			return 2
		}
		if e.app != nil {
			e.app.Logger.Debug("command failed", zap.String("command", cmd.name), zap.Error(cmdErr))
		}
		fmt.Fprintf(stderr, "Error: %s\n", userMessage(cmdErr))
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// userMessage normalizes any command error into the text shown to the shopper
func userMessage(err error) string {
	var serr *session.Error
	var cerr *checkout.Error
	switch {
	case errors.As(err, &serr):
		return serr.Message
	case errors.Is(err, checkout.ErrEmptyCart), errors.As(err, &cerr):
		return checkout.UserMessage(err)
	case errors.Is(err, profile.ErrDisabled):
		return profile.ErrDisabled.Error()
	case errors.Is(err, profile.ErrUnauthenticated):
		return profile.ErrUnauthenticated.Error()
	case errors.Is(err, cart.ErrInvalidQuantity):
		return "Quantity must be at least 1"
	case errors.Is(err, apiclient.ErrBackendUnavailable):
		return "The store is temporarily unavailable, try again shortly"
	}
	return apiclient.MessageFrom(err, err.Error())
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: storefront [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-44s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}
