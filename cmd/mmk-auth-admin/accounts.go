package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-ui-auth/internal/bootstrap"
	"github.com/target/mmk-ui-auth/internal/ports"
)

type purgeOptions struct {
	OlderThan time.Duration
	DryRun    bool
	Yes       bool
}

func parsePurgeFlags(args []string) (purgeOptions, error) {
	fs := flag.NewFlagSet("purge-accounts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := purgeOptions{}
	fs.DurationVar(&opts.OlderThan, "older-than", 30*24*time.Hour,
		"Purge accounts whose cache entry was last written before now minus this duration")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "List the accounts that would be purged")
	fs.BoolVar(&opts.Yes, "yes", false, "Confirm deletion")
	if err := fs.Parse(args); err != nil {
		return purgeOptions{}, err
	}
	if opts.OlderThan <= 0 {
		return purgeOptions{}, errors.New("--older-than must be greater than zero")
	}
	if !opts.DryRun && !opts.Yes {
		return purgeOptions{}, errors.New("refusing to purge without --yes (use --dry-run to preview)")
	}
	return opts, nil
}

func runListAccounts(cc *commandContext, _ []string) error {
	store, release, err := bootstrap.OpenAccountStore(cc.Ctx, &cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	defer release()

	accounts, err := store.List(cc.Ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	return printAccounts(cc.Out, accounts, time.Now())
}

func runPurgeAccounts(cc *commandContext, args []string) error {
	opts, err := parsePurgeFlags(args)
	if err != nil {
		return err
	}
	store, release, err := bootstrap.OpenAccountStore(cc.Ctx, &cc.Config, cc.Logger)
	if err != nil {
		return err
	}
	defer release()

	now := time.Now()
	cutoff := now.Add(-opts.OlderThan)
	if opts.DryRun {
		stale, err := bootstrap.StaleAccounts(cc.Ctx, store, cutoff)
		if err != nil {
			return err
		}
		if err := writef(cc.Out, "%d account(s) would be purged\n", len(stale)); err != nil {
			return err
		}
		return printAccounts(cc.Out, stale, now)
	}

	n, err := bootstrap.PurgeStaleAccounts(cc.Ctx, store, cutoff)
	if err != nil {
		return err
	}
	cc.Logger.Info("purged cached accounts", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return writef(cc.Out, "purged %d account(s)\n", n)
}

func printAccounts(w io.Writer, accounts []ports.CachedAccount, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "USERNAME\tHOME ACCOUNT\tTOKEN\tUPDATED\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, acct := range accounts {
		if err := writef(tw, "%s\t%s\t%s\t%s\n",
			acct.Account.Username,
			acct.Account.HomeAccountID,
			tokenState(acct, now),
			formatTime(acct.UpdatedAt),
		); err != nil {
			return fmt.Errorf("write account row: %w", err)
		}
	}
	return tw.Flush()
}

func tokenState(acct ports.CachedAccount, now time.Time) string {
	switch {
	case acct.AccessToken == "" && acct.RefreshToken == "":
		return "none"
	case acct.ExpiresAt.After(now):
		return "valid " + acct.ExpiresAt.Sub(now).Truncate(time.Second).String()
	case acct.RefreshToken != "":
		return "refreshable"
	default:
		return "expired"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
