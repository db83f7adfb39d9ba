package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// dividendRow is the JSON shape of one dividend record.
type dividendRow struct {
	ID       string  `json:"id"`
	Ticker   string  `json:"ticker"`
	ExDate   string  `json:"ex_date"`
	Amount   float64 `json:"amount"`
	Type     string  `json:"type"`
	Currency string  `json:"currency,omitempty"`
	Special  bool    `json:"special,omitempty"`
}

// NewDividendsCommand creates the dividends command.
func NewDividendsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		from, to, types string
		specialOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "dividends [ticker...]",
		Short: "List dividend records",
		Long: `List dividend records, optionally filtered by ticker, ex-date
range and dividend type.

Example:
  finstore dividends SPY --from 2024-01-01 --to 2024-12-31`,
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

			recs, err := db.Dividends(cmd.Context(), finstore.DividendQuery{
				Tickers:     args,
				From:        fromDate,
				To:          toDate,
				Types:       splitFields(types),
				SpecialOnly: specialOnly,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "dividends query failed", err)
			}

			rows := make([]dividendRow, 0, len(recs))
			var sb strings.Builder
			tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EX-DATE\tTICKER\tAMOUNT\tTYPE\tCCY\tSPECIAL")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%t\n",
					r.ExDate, r.Ticker, r.Amount, r.DividendType, r.Currency, r.SpecialFlag)
				rows = append(rows, dividendRow{
					ID:       r.ID,
					Ticker:   r.Ticker,
					ExDate:   r.ExDate.String(),
					Amount:   r.Amount,
					Type:     r.DividendType,
					Currency: r.Currency,
					Special:  r.SpecialFlag,
				})
			}
			tw.Flush()

			out := formatter(rootOpts, cmd)
			return out.SuccessText(sb.String(), rows)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "ex-date range start")
	cmd.Flags().StringVar(&to, "to", "", "ex-date range end")
	cmd.Flags().StringVar(&types, "types", "", "comma-separated dividend types")
	cmd.Flags().BoolVar(&specialOnly, "special", false, "special distributions only")

	return cmd
}
