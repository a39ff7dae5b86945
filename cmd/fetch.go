package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roadrings/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the configured source archives",
	Long: `Downloads the road network, state boundary and deforestation archives
into the raw data directory and extracts ZIP archives. Archives already on
disk are refreshed only when the server reports a new version.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		archives, err := fetcher.FetchAll(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		for _, a := range archives {
			if len(a.Extracted) > 0 {
				fmt.Printf("%-14s %s (%d files extracted)\n", a.Source, a.Path, len(a.Extracted))
			} else {
				fmt.Printf("%-14s %s\n", a.Source, a.Path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
