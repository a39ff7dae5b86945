package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/roadrings/internal/pipeline"
)

var prepareRoadsCmd = &cobra.Command{
	Use:   "prepare-roads",
	Short: "Extract the area of interest and clip the road network to it",
	Long: `Dissolves the configured state from the boundary shapefile into the
area of interest, keeps roads of the configured classes and clips them to it.
Writes aoi.geojson and roads.geojson under the processed data directory.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.PrepareRoads(ctx); err != nil {
			return err
		}

		fmt.Printf("Prepared %s and %s\n", cfg.Paths.AOIPath(), cfg.Paths.RoadsPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareRoadsCmd)
}
