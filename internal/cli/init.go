package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Long: `Create the database file, apply the schema and run migrations.

Running init against an existing database is harmless: the schema applies
idempotently and pending migrations run.

Example:
  finstore init --db ./finstore.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			out := formatter(rootOpts, cmd)
			return out.Success("database ready: " + rootOpts.Database)
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <fields.yaml>",
		Short: "Install field definitions from a yaml document",
		Long: `Install field definitions and per-security-type mappings from a
yaml seed document, replacing definitions that already exist for the same
mnemonic.

Example:
  finstore seed --db ./finstore.db ./seeds/fields.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SeedFields(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "seed failed", err)
			}

			out := formatter(rootOpts, cmd)
			return out.Success("fields seeded from " + args[0])
		},
	}
	return cmd
}
