package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var path string

	command := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}
	command.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default MIGRATIONS_PATH)")

	run := func(fn func(a *app, dir string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			dir := path
			if dir == "" {
				dir = a.cfg.Server.MigrationsPath
			}
			return fn(a, dir)
		}
	}

	command.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, dir string) error {
			return a.db.RunMigrations(dir)
		}),
	})
	command.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, dir string) error {
			return a.db.MigrateDown(dir)
		}),
	})
	command.AddCommand(&cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("version %q: %w", args[0], err)
			}
			return run(func(a *app, dir string) error {
				return a.db.MigrateToVersion(dir, uint(version))
			})(cmd, args)
		},
	})

	return command
}
