// Command mmk-auth-admin runs maintenance tasks against the account cache.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/mmk-ui-auth/config"
	"github.com/target/mmk-ui-auth/internal/bootstrap"
	"github.com/target/mmk-ui-auth/internal/migrate"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

type command struct {
	name        string
	description string
	run         func(cc *commandContext, args []string) error
}

// commands are listed in the order usage prints them.
func commands() []command {
	return []command{
		{"migrate", "Apply pending account cache migrations", runMigrations},
		{"migrate-status", "List known and pending account cache migrations", runMigrationStatus},
		{"list-accounts", "List accounts in the configured account cache", runListAccounts},
		{"purge-accounts", "Delete cached accounts not refreshed within --older-than", runPurgeAccounts},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code) //nolint:forbidigo // exit status is the CLI contract
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))

	if len(args) == 0 {
		_ = printUsage(stderr)
		return exitUsage
	}
	cmd, ok := lookup(args[0])
	if !ok {
		_ = writef(stderr, "unknown command %q\n\n", args[0])
		_ = printUsage(stderr)
		return exitUsage
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(ctx, "load config", "error", err)
		return exitError
	}
	cc := &commandContext{Ctx: ctx, Logger: logger, Config: cfg, Out: stdout}
	if err := cmd.run(cc, args[1:]); err != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmd.name, "error", err)
		return exitError
	}
	return exitOK
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: mmk-auth-admin <command> [flags]\n\nCommands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(w, "  %-18s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func parseTimeout(name string, args []string) (time.Duration, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", 5*time.Minute, "Give up after this long")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *timeout <= 0 {
		return 0, errors.New("--timeout must be positive")
	}
	return *timeout, nil
}

// withDB connects to the account cache database for the life of fn.
func withDB(cc *commandContext, name string, args []string, fn func(context.Context, *sql.DB) error) error {
	timeout, err := parseTimeout(name, args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cc.Ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, cc.Config.Postgres, cc.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	err = fn(ctx, db)
	if closeErr := db.Close(); closeErr != nil {
		cc.Logger.WarnContext(ctx, "closing database", "error", closeErr)
	}
	return err
}

func runMigrations(cc *commandContext, args []string) error {
	return withDB(cc, "migrate", args, func(ctx context.Context, db *sql.DB) error {
		if err := bootstrap.RunMigrations(ctx, db, cc.Logger); err != nil {
			return err
		}
		return writef(cc.Out, "migrations applied\n")
	})
}

func runMigrationStatus(cc *commandContext, args []string) error {
	return withDB(cc, "migrate-status", args, func(ctx context.Context, db *sql.DB) error {
		known, err := migrate.Versions()
		if err != nil {
			return err
		}
		pending, err := migrate.Pending(ctx, db)
		if err != nil {
			return fmt.Errorf("read migration state: %w", err)
		}
		return printMigrationStatus(cc.Out, known, pending)
	})
}

func printMigrationStatus(w io.Writer, known, pending []string) error {
	waiting := make(map[string]bool, len(pending))
	for _, v := range pending {
		waiting[v] = true
	}
	for _, v := range known {
		state := "applied"
		if waiting[v] {
			state = "pending"
		}
		if err := writef(w, "%-8s %s\n", state, v); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
