package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vivenda-group/geoseed-cli/internal/registry"
	"github.com/vivenda-group/geoseed-cli/internal/seeder"
	"github.com/vivenda-group/geoseed-cli/pkg/scrapejob"
)

var (
	seedLocation string
	seedArchive  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Collect and persist geographic reference data",
}

var seedMunicipalitiesCmd = &cobra.Command{
	Use:   "municipalities",
	Short: "Seed municipalities from the open-data catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := registry.Get("municipalities")
		if err != nil {
			return err
		}

		sum, err := seeder.SeedMunicipalities(ctx, st, initCatalog(), ds, seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var seedPostalCodesCmd = &cobra.Command{
	Use:   "postalcodes",
	Short: "Seed postal codes from the bundled archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := registry.Get("postal-codes")
		if err != nil {
			return err
		}

		sum, err := seeder.SeedPostalCodes(ctx, st, initFetcher(), ds, archivePath(cmd, ds.Path), seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var seedNeighborhoodsCmd = &cobra.Command{
	Use:   "neighborhoods",
	Short: "Seed neighborhoods from the bundled archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ds, err := registry.Get("neighborhoods")
		if err != nil {
			return err
		}

		sum, err := seeder.SeedNeighborhoods(ctx, st, initFetcher(), ds, archivePath(cmd, ds.Path), seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var seedListingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Seed real-estate listings via the asynchronous scrape job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if seedLocation == "" {
			return fmt.Errorf("--location is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client, err := initScrapeJob()
		if err != nil {
			return err
		}

		ds, err := registry.Get("listings")
		if err != nil {
			return err
		}

		req := scrapejob.RunRequest{
			Country:      cfg.ScrapeJob.Country,
			Location:     seedLocation,
			Operation:    seedOperation,
			PropertyType: seedPropertyType,
			MaxItems:     cfg.ScrapeJob.MaxItems,
		}

		sum, _, err := seeder.SeedListings(ctx, st, client, ds, req, nil, seedConfig(),
			scrapejob.WithPollInterval(cfg.ScrapeJob.PollInterval()),
			scrapejob.WithPollTimeout(cfg.ScrapeJob.PollTimeout()),
		)
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var seedAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Seed municipalities, postal codes and neighborhoods in order",
	Long:  "Runs the catalog and archive seeding stages back to back. Listings are excluded because they need a scrape location and token.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f := initFetcher()

		ds, err := registry.Get("municipalities")
		if err != nil {
			return err
		}
		sum, err := seeder.SeedMunicipalities(ctx, st, initCatalog(), ds, seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)

		ds, err = registry.Get("postal-codes")
		if err != nil {
			return err
		}
		sum, err = seeder.SeedPostalCodes(ctx, st, f, ds, ds.Path, seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)

		ds, err = registry.Get("neighborhoods")
		if err != nil {
			return err
		}
		sum, err = seeder.SeedNeighborhoods(ctx, st, f, ds, ds.Path, seedConfig())
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var (
	seedOperation    string
	seedPropertyType string
)

// archivePath prefers the --archive override over the registry default.
func archivePath(cmd *cobra.Command, fallback string) string {
	if cmd.Flags().Changed("archive") {
		return seedArchive
	}
	return fallback
}

func seedConfig() seeder.Config {
	return seeder.Config{FlushEvery: cfg.Seed.FlushEvery}
}

func printSummary(cmd *cobra.Command, sum *seeder.Summary) {
	if sum.AlreadySeeded {
		cmd.Printf("%s: already seeded, nothing to do\n", sum.Stage)
		return
	}
	cmd.Printf("%s: persisted %d, skipped %d (run %s)\n",
		sum.Stage, sum.Persisted, sum.Skipped, sum.RunID)
}

func init() {
	seedPostalCodesCmd.Flags().StringVar(&seedArchive, "archive", "", "zip archive path or https:// URL overriding the registry default")
	seedNeighborhoodsCmd.Flags().StringVar(&seedArchive, "archive", "", "zip archive path or https:// URL overriding the registry default")

	seedListingsCmd.Flags().StringVar(&seedLocation, "location", "", "location identifier for the scrape run")
	seedListingsCmd.Flags().StringVar(&seedOperation, "operation", "sale", "operation kind (sale or rent)")
	seedListingsCmd.Flags().StringVar(&seedPropertyType, "property-type", "homes", "property type to scrape")

	seedCmd.AddCommand(seedMunicipalitiesCmd)
	seedCmd.AddCommand(seedPostalCodesCmd)
	seedCmd.AddCommand(seedNeighborhoodsCmd)
	seedCmd.AddCommand(seedListingsCmd)
	seedCmd.AddCommand(seedAllCmd)
	rootCmd.AddCommand(seedCmd)
}
