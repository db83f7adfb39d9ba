package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// NewOverrideCommand creates the override command group.
func NewOverrideCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Assert, clear and list value corrections",
		Long: `Overrides pin a value for an exact (security, field, date) key
and outrank whatever the store resolves there. They are not revisions:
clearing one restores the stored value untouched.`,
	}
	cmd.AddCommand(newOverrideSetCommand(rootOpts))
	cmd.AddCommand(newOverrideClearCommand(rootOpts))
	cmd.AddCommand(newOverrideListCommand(rootOpts))
	return cmd
}

func newOverrideSetCommand(rootOpts *RootOptions) *cobra.Command {
	var field, date, value, reason, author string

	cmd := &cobra.Command{
		Use:           "set <ticker>",
		Short:         "Assert a correction",
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

			if err := db.SetOverride(cmd.Context(), args[0], field, dt, value, reason, author); err != nil {
				return WrapExitError(ExitFailure, "override failed", err)
			}

			out := formatter(rootOpts, cmd)
			return out.Success(fmt.Sprintf("override set: %s %s @ %s", args[0], field, dt))
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "field mnemonic (required)")
	cmd.Flags().StringVar(&date, "date", "", "valid date (required)")
	cmd.Flags().StringVar(&value, "value", "", "corrected value (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the stored value is wrong")
	cmd.Flags().StringVar(&author, "author", "", "who asserts the correction")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newOverrideClearCommand(rootOpts *RootOptions) *cobra.Command {
	var field, date string

	cmd := &cobra.Command{
		Use:           "clear <ticker>",
		Short:         "Remove a correction, restoring the stored value",
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

			if err := db.ClearOverride(cmd.Context(), args[0], field, dt); err != nil {
				return WrapExitError(ExitFailure, "clear failed", err)
			}

			out := formatter(rootOpts, cmd)
			return out.Success(fmt.Sprintf("override cleared: %s %s @ %s", args[0], field, dt))
		},
	}

	cmd.Flags().StringVar(&field, "field", "", "field mnemonic (required)")
	cmd.Flags().StringVar(&date, "date", "", "valid date (required)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// overrideRow is the JSON shape of one correction.
type overrideRow struct {
	FieldID int64  `json:"field_id"`
	Date    string `json:"date"`
	Value   string `json:"value"`
	Reason  string `json:"reason,omitempty"`
	Author  string `json:"author,omitempty"`
}

func newOverrideListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <ticker>",
		Short:         "List corrections for a security",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			ovs, err := db.Overrides(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "list failed", err)
			}

			rows := make([]overrideRow, 0, len(ovs))
			var sb strings.Builder
			tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tFIELD\tVALUE\tREASON\tAUTHOR")
			for _, o := range ovs {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
					o.ValidDate, o.FieldID, finstore.FormatValue(o.Value), o.Reason, o.Author)
				rows = append(rows, overrideRow{
					FieldID: o.FieldID,
					Date:    o.ValidDate.String(),
					Value:   finstore.FormatValue(o.Value),
					Reason:  o.Reason,
					Author:  o.Author,
				})
			}
			tw.Flush()

			out := formatter(rootOpts, cmd)
			return out.SuccessText(sb.String(), rows)
		},
	}
}
