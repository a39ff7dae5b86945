package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/export"
	"github.com/sells-group/roadrings/internal/store"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the persisted summary",
	Long: `Reads the persisted summary from the store and renders it as a console
table, CSV files or an XLSX workbook.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		table, err := loadTable(ctx, st)
		if err != nil {
			return err
		}

		outDir := exportOut
		if outDir == "" {
			outDir = cfg.Paths.IntersectionDir()
		}

		switch exportFormat {
		case "console":
			export.RenderConsole(os.Stdout, table)
			return nil
		case "csv":
			paths, err := export.WriteCSV(outDir, table)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		case "xlsx":
			path := filepath.Join(outDir, "summary.xlsx")
			if err := export.WriteXLSX(path, table); err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		default:
			return eris.Errorf("unknown export format %q (console, csv, xlsx)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "console", "output format: console, csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default: the intersection directory)")
	rootCmd.AddCommand(exportCmd)
}

// loadTable reassembles the aggregation table from the store.
func loadTable(ctx context.Context, st store.Store) (*aggregate.Table, error) {
	meta, err := st.Meta(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, eris.New("no summary persisted yet (run analyze first)")
	}

	byYear, err := st.ByRingYear(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	byRing, err := st.ByRing(ctx)
	if err != nil {
		return nil, err
	}

	return &aggregate.Table{ByRingYear: byYear, ByRing: byRing, Meta: *meta}, nil
}
