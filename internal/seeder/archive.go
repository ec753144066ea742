package seeder

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/collector"
	"github.com/vivenda-group/geoseed-cli/internal/feature"
	"github.com/vivenda-group/geoseed-cli/internal/fetcher"
	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/registry"
	"github.com/vivenda-group/geoseed-cli/internal/store"
)

// loadArchiveFeatures resolves an archive source (local path or HTTPS
// URL) to its raw features. The archive must contain exactly one
// GeoJSON file with a top-level features array.
func loadArchiveFeatures(ctx context.Context, f *fetcher.HTTPFetcher, archive string) ([]json.RawMessage, error) {
	path := archive
	if strings.HasPrefix(archive, "http://") || strings.HasPrefix(archive, "https://") {
		tmp, err := os.CreateTemp("", "geoseed-*.zip")
		if err != nil {
			return nil, eris.Wrap(err, "seeder: create temp archive")
		}
		tmp.Close() //nolint:errcheck
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := f.DownloadToFile(ctx, archive, tmp.Name()); err != nil {
			return nil, err
		}
		path = tmp.Name()
	}

	dir, err := os.MkdirTemp("", "geoseed-extract-")
	if err != nil {
		return nil, eris.Wrap(err, "seeder: create extract dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	geojsonPath, err := fetcher.ExtractSingle(path, dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(geojsonPath)
	if err != nil {
		return nil, eris.Wrap(err, "seeder: read geojson")
	}

	return feature.ParseCollection(data)
}

// SeedPostalCodes reads the postal-code archive and persists every
// parsed postal code in one transaction.
func SeedPostalCodes(ctx context.Context, st store.Store, f *fetcher.HTTPFetcher, ds registry.Dataset, archive string, cfg Config) (*Summary, error) {
	raws, err := loadArchiveFeatures(ctx, f, archive)
	if err != nil {
		return nil, eris.Wrapf(err, "seeder: stage %s", ds.Name)
	}
	src := collector.TypedFromSlice(raws, ds.BatchSize, parsePostalCode(ds), ds.Name)
	return Run(ctx, st, cfg, ds.Name, store.KindPostalCodes, src,
		func(ctx context.Context, tx store.Session, p *model.PostalCode) error {
			return tx.CreatePostalCode(ctx, p)
		})
}

// SeedNeighborhoods reads a neighborhood archive and persists every
// parsed neighborhood in one transaction.
func SeedNeighborhoods(ctx context.Context, st store.Store, f *fetcher.HTTPFetcher, ds registry.Dataset, archive string, cfg Config) (*Summary, error) {
	raws, err := loadArchiveFeatures(ctx, f, archive)
	if err != nil {
		return nil, eris.Wrapf(err, "seeder: stage %s", ds.Name)
	}
	src := collector.TypedFromSlice(raws, ds.BatchSize, parseNeighborhood(ds), ds.Name)
	return Run(ctx, st, cfg, ds.Name, store.KindNeighborhoods, src,
		func(ctx context.Context, tx store.Session, n *model.Neighborhood) error {
			_, err := tx.CreateNeighborhood(ctx, n)
			return err
		})
}
