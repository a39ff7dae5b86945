package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/roadrings/internal/pipeline"
)

var prepareDeforestationCmd = &cobra.Command{
	Use:   "prepare-deforestation",
	Short: "Filter and clip the deforestation polygons to the area of interest",
	Long: `Applies the configured year and class filters to the raw deforestation
layer and clips it to the prepared area of interest. Writes
deforestation.geojson and a bounded preview under the processed data
directory.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.PrepareDeforestation(ctx); err != nil {
			return err
		}

		fmt.Printf("Prepared %s\n", cfg.Paths.DeforestationPath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareDeforestationCmd)
}
