// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/stocksense/stocksense/internal/store"
)

// migrator is the subset of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command and its subcommands. Without a
// subcommand it applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Apply, roll back or inspect the schema migrations embedded in the binary.
The database is taken from the DATABASE_URL environment variable.`,
		RunE: runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (repairs a dirty database)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	})
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var (
		steps int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back the last --steps migrations, or every migration with --all.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && steps < 1 {
				return oops.Code("INVALID_STEPS").Errorf("--steps must be at least 1, got %d", steps)
			}
			return withMigrator(func(m migrator) error {
				if all {
					cmd.Println("Rolling back all migrations...")
					return m.Down()
				}
				cmd.Printf("Rolling back %d migration(s)...\n", steps)
				return m.Steps(-steps)
			}, func() { cmd.Println("Rollback completed successfully") })
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration (drops all data)")
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cmd.Println("Running migrations...")
	return withMigrator(func(m migrator) error {
		return m.Up()
	}, func() { cmd.Println("Migrations completed successfully") })
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(func(m migrator) error {
		st, err := m.Status()
		if err != nil {
			return err
		}
		cmd.Print(formatStatus(st))
		return nil
	}, nil)
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	return withMigrator(func(m migrator) error {
		return m.Force(version)
	}, func() { cmd.Printf("Forced schema version to %d\n", version) })
}

// withMigrator opens a migrator for DATABASE_URL, runs fn and closes it.
// done runs only when fn and Close both succeed.
func withMigrator(fn func(migrator) error, done func()) (err error) {
	databaseURL := os.Getenv(envDatabaseURL)
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("%s environment variable is required", envDatabaseURL)
	}

	m, err := newMigrator(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err == nil && done != nil {
			done()
		}
	}()

	return fn(m)
}

// parseForceVersion reads a migration version. Trailing non-digits are
// ignored.
func parseForceVersion(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatStatus(st store.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %d\n", st.Version)
	fmt.Fprintf(&b, "Dirty: %t\n", st.Dirty)
	writeList := func(title string, migs []store.Migration) {
		fmt.Fprintf(&b, "%s:\n", title)
		if len(migs) == 0 {
			b.WriteString("  (none)\n")
			return
		}
		for _, mig := range migs {
			fmt.Fprintf(&b, "  %06d %s\n", mig.Version, mig.Name)
		}
	}
	writeList("Applied", st.Applied)
	writeList("Pending", st.Pending)
	return b.String()
}
