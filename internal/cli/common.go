package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	finstore "github.com/quantfold/finstore"
)

// openDB opens the configured database for a command.
func openDB(opts *RootOptions) (*finstore.DB, error) {
	if err := requireDatabase(opts); err != nil {
		return nil, err
	}
	db, err := finstore.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return db, nil
}

// formatter builds the output formatter for a command.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// parseDateFlag parses a --date style flag, treating empty as zero.
func parseDateFlag(s string) (finstore.Date, error) {
	if s == "" {
		return finstore.Date{}, nil
	}
	d, err := finstore.ParseDate(s)
	if err != nil {
		return finstore.Date{}, WrapExitError(ExitCommandError, "invalid date", err)
	}
	return d, nil
}

// observationRow is the JSON shape of one resolved observation.
type observationRow struct {
	Ticker     string `json:"ticker,omitempty"`
	SecurityID int64  `json:"security_id"`
	Field      string `json:"field"`
	Date       string `json:"date"`
	Value      string `json:"value"`
	Overridden bool   `json:"overridden,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Filled     bool   `json:"filled,omitempty"`
}

// renderObservations renders a series as aligned text plus its JSON shape.
func renderObservations(obs []finstore.Observation) (string, []observationRow) {
	rows := make([]observationRow, 0, len(obs))
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFIELD\tSECURITY\tVALUE\tFLAGS")
	for _, o := range obs {
		var flags []string
		if o.Overridden {
			flags = append(flags, "override")
		}
		if o.Filled {
			flags = append(flags, "filled")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			o.ValidDate, o.Field, o.SecurityID,
			finstore.FormatValue(o.Value), strings.Join(flags, ","))
		rows = append(rows, observationRow{
			SecurityID: o.SecurityID,
			Field:      o.Field,
			Date:       o.ValidDate.String(),
			Value:      finstore.FormatValue(o.Value),
			Overridden: o.Overridden,
			Reason:     o.Reason,
			Filled:     o.Filled,
		})
	}
	tw.Flush()
	return sb.String(), rows
}
