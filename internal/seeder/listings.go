package seeder

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vivenda-group/geoseed-cli/internal/collector"
	"github.com/vivenda-group/geoseed-cli/internal/feature"
	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/registry"
	"github.com/vivenda-group/geoseed-cli/internal/store"
	"github.com/vivenda-group/geoseed-cli/pkg/scrapejob"
)

// listingProps is the subset of scrape-result properties the generic
// entity mapping does not cover.
type listingProps struct {
	Municipality string  `json:"municipality"`
	Price        float64 `json:"price"`
	URL          string  `json:"url"`
}

// parseListing builds listings from scrape results. seen is consulted
// and grown per record so duplicates across and within runs become
// skips instead of double writes.
func parseListing(ds registry.Dataset, req scrapejob.RunRequest, seen map[string]bool) collector.ParseFunc[*model.Listing] {
	return func(raw json.RawMessage) (*model.Listing, error) {
		e, err := feature.Parse(raw, ds.Mapping)
		if err != nil {
			return nil, err
		}
		if e.Code == "" {
			return nil, &feature.SkipError{Reason: "listing has no source id", Raw: truncate(raw)}
		}
		if seen[e.Code] {
			return nil, &feature.SkipError{Reason: "duplicate source id " + e.Code, Raw: truncate(raw)}
		}

		var envelope struct {
			Properties listingProps `json:"properties"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &feature.SkipError{Reason: "decode listing properties: " + err.Error(), Raw: truncate(raw)}
		}

		seen[e.Code] = true
		return &model.Listing{
			SourceID:         e.Code,
			Title:            e.Name,
			MunicipalityName: envelope.Properties.Municipality,
			Operation:        req.Operation,
			PropertyType:     req.PropertyType,
			Price:            envelope.Properties.Price,
			URL:              envelope.Properties.URL,
			Geom:             e.Geom,
		}, nil
	}
}

// resolveMunicipality matches the listing's reported municipality name
// against seeded municipalities, case- and accent-insensitively. An
// unmatched name leaves the code empty; the listing still persists.
func resolveMunicipality(ctx context.Context, st store.Store, l *model.Listing) error {
	if l.MunicipalityName == "" {
		return nil
	}
	m, err := st.MunicipalityByName(ctx, l.MunicipalityName)
	if eris.Is(err, store.ErrNotFound) {
		zap.L().Debug("listing municipality not seeded",
			zap.String("source_id", l.SourceID),
			zap.String("municipality", l.MunicipalityName),
		)
		return nil
	}
	if err != nil {
		return err
	}
	l.MunicipalityCode = m.Code
	return nil
}

// SeedListings submits one scrape run, waits for it to reach a terminal
// state, and persists the deduplicated results in one transaction.
//
// seen is the dedup accumulator keyed by listing source id. The input
// set is never mutated; the returned set is the input plus every source
// id accepted by this call, so consecutive calls chain their
// accumulators explicitly instead of sharing hidden state.
func SeedListings(ctx context.Context, st store.Store, client scrapejob.Client, ds registry.Dataset, req scrapejob.RunRequest, seen map[string]bool, cfg Config, pollOpts ...scrapejob.PollOption) (*Summary, map[string]bool, error) {
	next := make(map[string]bool, len(seen))
	for id := range seen {
		next[id] = true
	}

	job, err := client.Start(ctx, ds.Path, req)
	if err != nil {
		return nil, next, eris.Wrapf(err, "seeder: stage %s", ds.Name)
	}
	zap.L().Info("scrape run submitted",
		zap.String("stage", ds.Name),
		zap.String("scrape_run_id", job.RunID),
		zap.String("location", req.Location),
	)

	job, err = scrapejob.Wait(ctx, client, job, pollOpts...)
	if err != nil {
		return nil, next, eris.Wrapf(err, "seeder: stage %s", ds.Name)
	}

	raws, err := client.FetchResults(ctx, job)
	if err != nil {
		return nil, next, eris.Wrapf(err, "seeder: stage %s", ds.Name)
	}

	src := collector.TypedFromSlice(raws, ds.BatchSize, parseListing(ds, req, next), ds.Name)
	sum, err := Run(ctx, st, cfg, ds.Name, store.KindListings, src,
		func(ctx context.Context, tx store.Session, l *model.Listing) error {
			if err := resolveMunicipality(ctx, st, l); err != nil {
				return err
			}
			return tx.CreateListing(ctx, l)
		})
	if err != nil {
		return nil, next, err
	}
	return sum, next, nil
}
