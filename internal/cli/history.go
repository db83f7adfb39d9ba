package cli

import (
	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fields, from, to, mode, asOf string
		period, days, fill, fx       string
		includeInactive              bool
	)

	cmd := &cobra.Command{
		Use:   "history <ticker> [ticker...]",
		Short: "Read field series over a valid-date range",
		Long: `Read field series over a valid-date range, optionally projected
onto a coarser period grid (W, M, Q, HY, Y). Period boundaries sample the
latest value at or before the boundary; values never travel backward.

Example:
  finstore history SPY --fields PX_CLOSE --from 2024-01-01 --to 2024-06-30
  finstore history SPY --fields NAV_CLOSE --from 2024-01-01 --to 2024-12-31 --period M`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			fromDate, err := parseDateFlag(from)
			if err != nil {
				return err
			}
			toDate, err := parseDateFlag(to)
			if err != nil {
				return err
			}
			asOfDate, err := parseDateFlag(asOf)
			if err != nil {
				return err
			}

			obs, err := db.History(cmd.Context(), finstore.HistoryRequest{
				IDs:             args,
				Fields:          splitFields(fields),
				From:            fromDate,
				To:              toDate,
				Mode:            finstore.DateMode(mode),
				AsOfDate:        asOfDate,
				Periodicity:     finstore.Periodicity(period),
				DaysPolicy:      finstore.Days(days),
				Fill:            finstore.FillMode(fill),
				Fx:              fx,
				IncludeInactive: includeInactive,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "history read failed", err)
			}

			text, rows := renderObservations(obs)
			out := formatter(rootOpts, cmd)
			return out.SuccessText(text, rows)
		},
	}

	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated field mnemonics (required)")
	cmd.Flags().StringVar(&from, "from", "", "range start (required)")
	cmd.Flags().StringVar(&to, "to", "", "range end (default today)")
	cmd.Flags().StringVar(&mode, "mode", "", "date mode: as_seen (default) or as_of")
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of transaction date (as_of mode)")
	cmd.Flags().StringVar(&period, "period", "", "output periodicity: D W M Q HY Y")
	cmd.Flags().StringVar(&days, "days", "", "day universe for grid boundaries: N (weekdays, default), C (calendar), T (trading sessions)")
	cmd.Flags().StringVar(&fill, "fill", "", "gap handling: NA (default) or P")
	cmd.Flags().StringVar(&fx, "fx", "", "target currency for conversion")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "admit inactive securities")
	_ = cmd.MarkFlagRequired("fields")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}
