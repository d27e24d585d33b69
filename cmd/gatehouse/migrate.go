// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
)

// migratorFactory is swapped in tests to avoid a real database.
var migratorFactory = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// migrator is the subset of *store.Migrator the CLI uses.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(int) error
	Close() error
}

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					cmd.Println("Migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations (destructive)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m migrator) error {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("Migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					if version == 0 {
						cmd.Println("No migrations applied")
						return nil
					}
					cmd.Printf("Version: %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the migration version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil || version < 0 {
					return oops.Code("INVALID_VERSION").
						Errorf("version must be a non-negative integer, got %q", args[0])
				}
				return withMigrator(cmd, func(m migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					cmd.Printf("Forced version to %d\n", version)
					return nil
				})
			},
		},
	)

	return cmd
}

// withMigrator resolves the database URL, opens a migrator, and ensures it is
// closed after fn runs.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	m, err := migratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()

	return fn(m)
}
