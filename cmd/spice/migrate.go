package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Long: `Apply pending schema migrations. Every command does this on start; run it
explicitly after an upgrade, or with --status to see where the database is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			path := config.DatabasePath(viper.GetViper())

			store, err := storage.NewSQLiteStorage(path)
			if err != nil {
				return err
			}
			defer store.Close()

			before, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			if status {
				rows := make([][]string, 0, storage.ExpectedSchemaVersion)
				for _, m := range storage.Migrations() {
					state := cli.WarningStyle.Render("pending")
					if m.Version <= before {
						state = cli.SuccessStyle.Render("applied")
					}
					rows = append(rows, []string{strconv.Itoa(m.Version), m.Description, state})
				}
				fmt.Fprintln(out, cli.Table([]string{"Version", "Migration", "State"}, rows))
				fmt.Fprintf(out, "%s: schema version %d of %d\n", path, before, storage.ExpectedSchemaVersion)
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			after, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			if after == before {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Schema already at version %d", after)))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated %s from version %d to %d", path, before, after)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show applied and pending migrations without changing anything")
	return cmd
}
