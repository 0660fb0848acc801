package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/phrazzld/renaissance/internal/platform/postgres"
	"github.com/pressly/goose/v3"
)

var migrateCommands = []string{"up", "down", "status", "version"}

// migrator is the part of goose.Provider the migrate command uses.
type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
	Down(ctx context.Context) (*goose.MigrationResult, error)
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
	GetDBVersion(ctx context.Context) (int64, error)
}

// runMigrations executes one migrate subcommand against db.
func runMigrations(ctx context.Context, db *sql.DB, command string, out io.Writer, log *slog.Logger) error {
	if !slices.Contains(migrateCommands, command) {
		return fmt.Errorf("unknown migrate command %q", command)
	}
	provider, err := postgres.NewMigrationProvider(db)
	if err != nil {
		return err
	}
	return executeMigration(ctx, provider, command, out, log)
}

func executeMigration(ctx context.Context, m migrator, command string, out io.Writer, log *slog.Logger) error {
	switch command {
	case "up":
		results, err := m.Up(ctx)
		for _, r := range results {
			fmt.Fprintf(out, "applied %s (%s)\n", r.Source.Path, r.Duration)
		}
		if err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		log.Info("migrations applied", slog.Int("count", len(results)))
		if len(results) == 0 {
			fmt.Fprintln(out, "no pending migrations")
		}
	case "down":
		r, err := m.Down(ctx)
		if err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		fmt.Fprintf(out, "rolled back %s\n", r.Source.Path)
		log.Info("migration rolled back", slog.Int64("version", r.Source.Version))
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status failed: %w", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%-14d %-50s %s\n", s.Source.Version, s.Source.Path, applied)
		}
	case "version":
		v, err := m.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("migrate version failed: %w", err)
		}
		fmt.Fprintf(out, "version %d\n", v)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	return nil
}
