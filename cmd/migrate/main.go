package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/subway/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	dsnEnv         = "SUBWAY_POSTGRES_DSN"
)

// migrator — операции схемы, нужные CLI.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationStatus, error)
	Close() error
}

type openFunc func(ctx context.Context, dsn string) (migrator, error)

func openPostgres(ctx context.Context, dsn string) (migrator, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func main() {
	if err := newRootCmd(openPostgres).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the subway PostgreSQL schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+dsnEnv+")")
	root.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "overall timeout")

	// withStore открывает хранилище, выполняет fn и печатает итоговый статус.
	withStore := func(cmd *cobra.Command, label string, fn func(ctx context.Context, m migrator) error) error {
		resolved := strings.TrimSpace(dsn)
		if resolved == "" {
			resolved = strings.TrimSpace(os.Getenv(dsnEnv))
		}
		if resolved == "" {
			return errors.New(dsnEnv + " (or --dsn) is required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		m, err := open(ctx, resolved)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		defer m.Close()

		if fn != nil {
			if err := fn(ctx, m); err != nil {
				return fmt.Errorf("%s failed: %w", label, err)
			}
		}

		status, err := m.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("migration status failed: %w", err)
		}
		printStatus(cmd.OutOrStdout(), label, status)
		return nil
	}

	var upSteps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, "migrate up", func(ctx context.Context, m migrator) error {
				return m.MigrateUp(ctx, upSteps)
			})
		},
	}
	up.Flags().IntVar(&upSteps, "steps", 0, "number of migrations to apply (0 = all)")

	var downSteps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, "migrate down", func(ctx context.Context, m migrator) error {
				return m.MigrateDown(ctx, downSteps)
			})
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, "migration status", nil)
		},
	}

	root.AddCommand(up, down, status)
	return root
}

func printStatus(w io.Writer, label string, status postgres.MigrationStatus) {
	_, _ = fmt.Fprintf(w, "%s: version=%d applied=%d pending=%d\n", label, status.Version, status.Applied, len(status.Pending))
	for _, name := range status.Pending {
		_, _ = fmt.Fprintf(w, "  pending %s\n", name)
	}
}
