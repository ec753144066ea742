package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vivenda-group/geoseed-cli/internal/linker"
)

var (
	linkThreshold float64
	linkParallel  int
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link postal codes to municipalities by polygon proximity",
	Long:  "Computes polygon distance between every postal code and the municipalities of its province, creating a bidirectional link for each pair within the threshold. Commits once per province.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		threshold := linkThreshold
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Link.Threshold
		}
		parallel := linkParallel
		if !cmd.Flags().Changed("parallel") {
			parallel = cfg.Link.Parallelism
		}

		l := linker.New(st, linker.Config{
			Threshold:   threshold,
			Parallelism: parallel,
		})
		sum, err := l.Run(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("linked %d postal codes across %d provinces: %d links, %d unlinked\n",
			sum.PostalCodes, sum.Provinces, sum.Links, sum.Unlinked)
		return nil
	},
}

func init() {
	linkCmd.Flags().Float64Var(&linkThreshold, "threshold", linker.DefaultThreshold, "maximum link distance in degrees")
	linkCmd.Flags().IntVar(&linkParallel, "parallel", 1, "number of provinces linked concurrently")
	rootCmd.AddCommand(linkCmd)
}
