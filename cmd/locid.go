package main

import (
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vivenda-group/geoseed-cli/internal/locid"
	"github.com/vivenda-group/geoseed-cli/internal/model"
)

var locidCmd = &cobra.Command{
	Use:   "locid",
	Short: "Work with composite location identifiers",
}

var locidEncodeCmd = &cobra.Command{
	Use:   "encode <municipality-code> <postal-code> [neighborhood-id]",
	Short: "Render a composite location identifier",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m, err := st.Municipality(ctx, args[0])
		if err != nil {
			return err
		}
		p, err := st.PostalCode(ctx, args[1])
		if err != nil {
			return err
		}
		var n *model.Neighborhood
		if len(args) == 3 {
			nID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return eris.Wrapf(err, "locid: neighborhood id %q", args[2])
			}
			n, err = st.Neighborhood(ctx, nID)
			if err != nil {
				return err
			}
		}

		id, err := locid.Encode(m, p, n)
		if err != nil {
			return err
		}
		cmd.Println(id)
		return nil
	},
}

var locidDecodeCmd = &cobra.Command{
	Use:   "decode <identifier>",
	Short: "Resolve a composite location identifier against the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loc, err := locid.New(st).Decode(ctx, args[0])
		if err != nil {
			return err
		}

		cmd.Printf("municipality: %s (%s)\n", loc.Municipality.Name, loc.Municipality.Code)
		cmd.Printf("postal code:  %s\n", loc.PostalCode.Code)
		if loc.Neighborhood != nil {
			cmd.Printf("neighborhood: %s (%d)\n", loc.Neighborhood.Name, loc.Neighborhood.ID)
		}
		return nil
	},
}

func init() {
	locidCmd.AddCommand(locidEncodeCmd)
	locidCmd.AddCommand(locidDecodeCmd)
	rootCmd.AddCommand(locidCmd)
}
