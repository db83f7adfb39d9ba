package cli

import (
	"strings"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// NewPointCommand creates the point command.
func NewPointCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fields, date, mode, asOf, fx, fill string
		includeInactive                    bool
	)

	cmd := &cobra.Command{
		Use:   "point <ticker> [ticker...]",
		Short: "Read field values on one valid date",
		Long: `Read field values for one or more securities on a single valid
date. The default date is the previous business day; the default mode
(as_seen) returns the currently-held belief. Mode as_of with --as-of
reconstructs the belief state at a past transaction date.

Example:
  finstore point SPY --fields PX_CLOSE,NAV_CLOSE --date 2024-06-28
  finstore point SPY --fields PX_CLOSE --date 2024-06-28 --mode as_of --as-of 2024-07-01`,
		Args:          cobra.MinimumNArgs(1),
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
			asOfDate, err := parseDateFlag(asOf)
			if err != nil {
				return err
			}

			obs, err := db.Point(cmd.Context(), finstore.PointRequest{
				IDs:             args,
				Fields:          splitFields(fields),
				Date:            dt,
				Mode:            finstore.DateMode(mode),
				AsOfDate:        asOfDate,
				Fill:            finstore.FillMode(fill),
				Fx:              fx,
				IncludeInactive: includeInactive,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "point read failed", err)
			}

			text, rows := renderObservations(obs)
			out := formatter(rootOpts, cmd)
			return out.SuccessText(text, rows)
		},
	}

	cmd.Flags().StringVar(&fields, "fields", "", "comma-separated field mnemonics (required)")
	cmd.Flags().StringVar(&date, "date", "", "valid date (default previous business day)")
	cmd.Flags().StringVar(&mode, "mode", "", "date mode: as_seen (default) or as_of")
	cmd.Flags().StringVar(&asOf, "as-of", "", "as-of transaction date (as_of mode)")
	cmd.Flags().StringVar(&fill, "fill", "", "gap handling: NA (default) or P")
	cmd.Flags().StringVar(&fx, "fx", "", "target currency for conversion")
	cmd.Flags().BoolVar(&includeInactive, "include-inactive", false, "admit inactive securities")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
