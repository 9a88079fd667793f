package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/docaccess-api/migrations"
	"github.com/noah-isme/docaccess-api/pkg/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the analytics mirror schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(func(m *database.Migrator) error { return m.Up() }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(func(m *database.Migrator) error { return m.Down() }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(func(m *database.Migrator) error { return m.Status() }),
		},
	)
	return cmd
}

func withMigrator(fn func(*database.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.sync()

		db, err := database.NewPostgres(rt.cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		return fn(database.NewMigrator(db, migrations.FS, rt.logger))
	}
}
