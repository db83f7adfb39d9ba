package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// securityRow is the JSON shape of one security-master record.
type securityRow struct {
	ID           int64  `json:"id"`
	Ticker       string `json:"ticker"`
	SecurityType string `json:"security_type"`
	Currency     string `json:"currency,omitempty"`
	ExchangeCode string `json:"exchange_code,omitempty"`
	VendorTicker string `json:"vendor_ticker,omitempty"`
	Active       bool   `json:"active"`
}

// NewSecuritiesCommand creates the securities command group.
func NewSecuritiesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "securities",
		Short: "Inspect and maintain the security master",
	}
	cmd.AddCommand(newSecuritiesListCommand(rootOpts))
	cmd.AddCommand(newSecuritiesAddCommand(rootOpts))
	cmd.AddCommand(newSecuritiesDeactivateCommand(rootOpts))
	return cmd
}

func newSecuritiesListCommand(rootOpts *RootOptions) *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List securities",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			secs, err := db.Securities(cmd.Context(), includeInactive)
			if err != nil {
				return WrapExitError(ExitFailure, "list failed", err)
			}

			rows := make([]securityRow, 0, len(secs))
			var sb strings.Builder
			tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTICKER\tTYPE\tCCY\tEXCH\tACTIVE")
			for _, s := range secs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
					s.ID, s.Ticker, s.SecurityType, s.Currency, s.ExchangeCode, s.IsActive)
				rows = append(rows, securityRow{
					ID:           s.ID,
					Ticker:       s.Ticker,
					SecurityType: s.SecurityType,
					Currency:     s.Currency,
					ExchangeCode: s.ExchangeCode,
					VendorTicker: s.VendorTicker,
					Active:       s.IsActive,
				})
			}
			tw.Flush()

			out := formatter(rootOpts, cmd)
			return out.SuccessText(sb.String(), rows)
		},
	}

	cmd.Flags().BoolVar(&includeInactive, "all", false, "include inactive securities")
	return cmd
}

func newSecuritiesAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secType, currency, exchange, vendor string
		inception                           string
	)

	cmd := &cobra.Command{
		Use:   "add <ticker>",
		Short: "Insert or update a security",
		Long: `Insert a security, or update the one already registered under the
ticker. The internal id is allocated by the store and never changes.

Example:
  finstore securities add SPY --type ETF --currency USD --exchange US`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			inceptionDate, err := parseDateFlag(inception)
			if err != nil {
				return err
			}

			id, err := db.UpsertSecurity(cmd.Context(), finstore.Security{
				Ticker:        args[0],
				SecurityType:  secType,
				Currency:      currency,
				ExchangeCode:  exchange,
				VendorTicker:  vendor,
				InceptionDate: inceptionDate,
				IsActive:      true,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "add failed", err)
			}

			out := formatter(rootOpts, cmd)
			return out.Success(fmt.Sprintf("security %s registered with id %d", args[0], id))
		},
	}

	cmd.Flags().StringVar(&secType, "type", "", "security type (required)")
	cmd.Flags().StringVar(&currency, "currency", "", "denomination currency")
	cmd.Flags().StringVar(&exchange, "exchange", "", "exchange code")
	cmd.Flags().StringVar(&vendor, "vendor-ticker", "", "vendor ticker")
	cmd.Flags().StringVar(&inception, "inception", "", "inception date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newSecuritiesDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:           "deactivate <ticker>",
		Short:         "Close a security's lifecycle without deleting history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			dt, err := parseDateFlag(asOf)
			if err != nil {
				return err
			}
			if dt.IsZero() {
				dt = finstore.Today()
			}

			if err := db.DeactivateSecurity(cmd.Context(), args[0], dt); err != nil {
				return WrapExitError(ExitFailure, "deactivate failed", err)
			}

			out := formatter(rootOpts, cmd)
			return out.Success(fmt.Sprintf("security %s deactivated as of %s", args[0], dt))
		},
	}

	cmd.Flags().StringVar(&asOf, "date", "", "termination date (default today)")
	return cmd
}
