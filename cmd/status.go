package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vivenda-group/geoseed-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts per entity and link totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kinds := []store.Kind{
			store.KindMunicipalities,
			store.KindPostalCodes,
			store.KindNeighborhoods,
			store.KindListings,
		}
		for _, kind := range kinds {
			n, err := st.Count(ctx, kind)
			if err != nil {
				return err
			}
			cmd.Printf("%-15s %d\n", kind, n)
		}

		links, err := st.CountLinks(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("%-15s %d\n", "links", links)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
