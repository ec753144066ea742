package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/fetcher"
	"github.com/vivenda-group/geoseed-cli/internal/opendatasoft"
	"github.com/vivenda-group/geoseed-cli/internal/store"
	"github.com/vivenda-group/geoseed-cli/pkg/scrapejob"
)

// initStore opens the configured backend and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "geoseed.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initCatalog() opendatasoft.Client {
	opts := []opendatasoft.Option{}
	if cfg.Catalog.BaseURL != "" {
		opts = append(opts, opendatasoft.WithBaseURL(cfg.Catalog.BaseURL))
	}
	if cfg.Catalog.RatePerSecond > 0 {
		opts = append(opts, opendatasoft.WithRateLimit(cfg.Catalog.RatePerSecond, 5))
	}
	return opendatasoft.NewClient(opts...)
}

func initScrapeJob() (scrapejob.Client, error) {
	if cfg.ScrapeJob.Token == "" {
		return nil, eris.New("scrape job token is required (GEOSEED_SCRAPEJOB_TOKEN)")
	}
	opts := []scrapejob.Option{}
	if cfg.ScrapeJob.BaseURL != "" {
		opts = append(opts, scrapejob.WithBaseURL(cfg.ScrapeJob.BaseURL))
	}
	return scrapejob.NewClient(cfg.ScrapeJob.Token, opts...), nil
}

func initFetcher() *fetcher.HTTPFetcher {
	opts := fetcher.HTTPOptions{
		MaxRetries:   cfg.Fetch.Retries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	}
	if cfg.Fetch.TimeoutSecs > 0 {
		opts.Timeout = time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	}
	return fetcher.NewHTTPFetcher(opts)
}
