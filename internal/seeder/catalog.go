package seeder

import (
	"context"
	"encoding/json"

	"github.com/vivenda-group/geoseed-cli/internal/collector"
	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/opendatasoft"
	"github.com/vivenda-group/geoseed-cli/internal/registry"
	"github.com/vivenda-group/geoseed-cli/internal/store"
)

// catalogFetch adapts the catalog records API to the collector's page
// protocol.
func catalogFetch(client opendatasoft.Client, dataset string) collector.FetchFunc {
	return func(ctx context.Context, c collector.Cursor) ([]json.RawMessage, error) {
		resp, err := client.Records(ctx, dataset, c.Limit, c.Offset)
		if err != nil {
			return nil, err
		}
		return resp.Results, nil
	}
}

// SeedMunicipalities pages through the configured catalog dataset and
// persists every parsed municipality in one transaction.
func SeedMunicipalities(ctx context.Context, st store.Store, client opendatasoft.Client, ds registry.Dataset, cfg Config) (*Summary, error) {
	src := collector.NewTyped(
		catalogFetch(client, ds.Path),
		ds.BatchSize,
		parseMunicipality(ds),
		ds.Name,
	)
	return Run(ctx, st, cfg, ds.Name, store.KindMunicipalities, src,
		func(ctx context.Context, tx store.Session, m *model.Municipality) error {
			return tx.CreateMunicipality(ctx, m)
		})
}
