package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// fieldRow is the JSON shape of one field definition.
type fieldRow struct {
	Mnemonic    string `json:"mnemonic"`
	DataType    string `json:"data_type"`
	StorageMode string `json:"storage_mode"`
	Table       string `json:"table"`
	Column      string `json:"column,omitempty"`
	Periodicity string `json:"periodicity"`
	FxMode      string `json:"fx_mode,omitempty"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "fields",
		Short:         "List field definitions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(rootOpts)
			if err != nil {
				return err
			}
			defer db.Close()

			defs := db.Fields()
			rows := make([]fieldRow, 0, len(defs))
			var sb strings.Builder
			tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MNEMONIC\tTYPE\tMODE\tTABLE\tCOLUMN\tPERIOD\tFX")
			for _, def := range defs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					def.Mnemonic, def.DataType, def.StorageMode,
					def.StorageTable, def.StorageColumn, def.Periodicity, def.FxMode)
				rows = append(rows, fieldRow{
					Mnemonic:    def.Mnemonic,
					DataType:    string(def.DataType),
					StorageMode: string(def.StorageMode),
					Table:       def.StorageTable,
					Column:      def.StorageColumn,
					Periodicity: string(def.Periodicity),
					FxMode:      string(def.FxMode),
				})
			}
			tw.Flush()

			out := formatter(rootOpts, cmd)
			return out.SuccessText(sb.String(), rows)
		},
	}
}
