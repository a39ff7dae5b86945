package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/roadrings/internal/export"
	"github.com/sells-group/roadrings/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Overlay deforestation against the rings and persist the summary",
	Long: `Intersects the prepared deforestation polygons with the ring partition
in chunks, aggregates the deforested area per ring per year and replaces the
stored summary atomically. Prints the resulting table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Analysis.Validate(); err != nil {
			return err
		}

		p, err := pipeline.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		table, err := p.OverlayAndAggregate(ctx)
		if err != nil {
			return err
		}

		export.RenderConsole(os.Stdout, table)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
