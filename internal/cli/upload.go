package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		field, date, txnDate, value string
	)

	cmd := &cobra.Command{
		Use:   "upload <ticker>",
		Short: "Write one field value",
		Long: `Write one field value. Long-tier fields append a revision: the
stored history is never modified, and re-uploading the identical value is a
no-op. Writes whose transaction date does not exceed the stored revision's
are rejected whole.

Example:
  finstore upload SPY --field NAV_CLOSE --date 2024-06-28 --value 456.78`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			dt, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			txn, err := parseDateFlag(txnDate)
			if err != nil {
				return err
			}

			res, err := db.Upload(cmd.Context(), []finstore.UploadRow{{
				Ticker:    args[0],
				Field:     field,
				ValidDate: dt,
				Value:     value,
			}}, txn)
			if err != nil {
				return WrapExitError(ExitFailure, "upload failed", err)
			}

			out := formatter(rootOpts, cmd)
			if res.Written == 0 {
				return out.Success("value unchanged, no revision written")
			}
			return out.Success(fmt.Sprintf("wrote %s %s @ %s", args[0], field, dt))
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "field mnemonic (required)")
	cmd.Flags().StringVar(&date, "date", "", "valid date (required)")
	cmd.Flags().StringVar(&value, "value", "", "value to write (required)")
	cmd.Flags().StringVar(&txnDate, "txn-date", "", "transaction date (default today)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}
