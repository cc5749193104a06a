// Command marketplace is the command-line front-end of the marketplace
// client. It keeps the signed-in session between runs and can run as a
// long-lived agent exposing an ops API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/app"
	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/pkg/config"
	"github.com/servicehub/marketplace-client/pkg/logger"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli is what every command receives.
type cli struct {
	app *app.App
	cfg *config.Config
	log zerolog.Logger
	out io.Writer
	err io.Writer
}

type command struct {
	summary string
	// restore is false for commands that must not touch a saved session.
	restore bool
	run     func(ctx context.Context, c *cli, args []string) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: stderr}).
		With().Str("env", cfg.Env).Logger()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close(context.Background())

	c := &cli{app: a, cfg: cfg, log: log, out: stdout, err: stderr}
	if cmd.restore {
		if _, err := a.Auth.Restore(ctx); err != nil {
			log.Warn().Err(err).Msg("saved session not restored")
		}
	}

	if err := cmd.run(ctx, c, args[1:]); err != nil {
		return report(stderr, err)
	}
	return 0
}

// report prints err and returns the exit code for it.
func report(w io.Writer, err error) int {
	switch {
	case errors.Is(err, errHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	}
	ae := domain.Normalize(err)
	l := logger.Get()
	l.Debug().Err(ae.Err).Str("type", string(ae.Type)).Int("status", ae.Status).Msg("command failed")
	fmt.Fprintf(w, "error: %s\n", ae.Message)
	switch ae.Type {
	case domain.TypeValidation:
		return 2
	case domain.TypeAuthentication, domain.TypeAuthorization:
		return 3
	case domain.TypeInsufficientBalance:
		return 4
	}
	return 1
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: marketplace <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'marketplace <command> --help' for the flags of a command.")
}
