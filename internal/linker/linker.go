// Package linker establishes postal code to municipality proximity
// links. Postal codes and municipalities are ingested independently
// with no shared identifier; the link is derived purely from polygon
// distance and exists to narrow candidate postal codes for a
// municipality-tagged listing.
package linker

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/store"
)

// DefaultThreshold is the linking distance in degrees, roughly 500 m
// at Spanish latitudes.
const DefaultThreshold = 0.005

// Config tunes one linking pass.
type Config struct {
	// Threshold is the inclusive maximum distance for a link.
	Threshold float64
	// Parallelism bounds concurrent province passes. Values below 2
	// run provinces sequentially.
	Parallelism int
}

// Summary reports the outcome of one linking pass.
type Summary struct {
	Provinces   int
	PostalCodes int
	Links       int
	// Unlinked counts postal codes for which no municipality fell
	// within the threshold. They are diagnosed, not failed.
	Unlinked int
}

// Linker runs the proximity pass against a populated store.
type Linker struct {
	store store.Store
	cfg   Config
}

// New builds a linker. Zero-value config fields take defaults.
func New(st store.Store, cfg Config) *Linker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Linker{store: st, cfg: cfg}
}

// Run links every stored postal code to all municipalities of its
// province within the threshold. Links commit once per province, so a
// failing province never rolls back provinces already committed.
func (l *Linker) Run(ctx context.Context) (*Summary, error) {
	codes, err := l.store.PostalCodeIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "linker: load postal codes")
	}

	groups, err := groupByProvince(codes)
	if err != nil {
		return nil, err
	}

	provinces := make([]string, 0, len(groups))
	for p := range groups {
		provinces = append(provinces, p)
	}
	sort.Strings(provinces)

	sum := &Summary{Provinces: len(groups), PostalCodes: len(codes)}

	if l.cfg.Parallelism > 1 {
		return sum, l.runParallel(ctx, provinces, groups, sum)
	}
	for _, province := range provinces {
		ps, err := l.linkProvince(ctx, province, groups[province])
		if err != nil {
			return nil, err
		}
		sum.Links += ps.links
		sum.Unlinked += ps.unlinked
	}
	return sum, nil
}

// groupByProvince buckets postal codes by their two-character province
// prefix. A shorter identifier means the store was seeded from a
// broken source, which is fatal, not skippable.
func groupByProvince(codes []string) (map[string][]string, error) {
	groups := make(map[string][]string)
	for _, code := range codes {
		if len(code) < 2 {
			return nil, eris.Errorf("linker: postal code %q has no province prefix", code)
		}
		p := code[:2]
		groups[p] = append(groups[p], code)
	}
	return groups, nil
}

type provinceSummary struct {
	links    int
	unlinked int
}

func (l *Linker) runParallel(ctx context.Context, provinces []string, groups map[string][]string, sum *Summary) error {
	results := make([]provinceSummary, len(provinces))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Parallelism)
	for i, province := range provinces {
		g.Go(func() error {
			ps, err := l.linkProvince(ctx, province, groups[province])
			if err != nil {
				return err
			}
			results[i] = *ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, ps := range results {
		sum.Links += ps.links
		sum.Unlinked += ps.unlinked
	}
	return nil
}

// linkProvince computes links for one province group inside one
// transaction.
func (l *Linker) linkProvince(ctx context.Context, province string, codes []string) (*provinceSummary, error) {
	log := zap.L().With(zap.String("province", province))

	munis, err := l.store.MunicipalitiesByProvince(ctx, province)
	if err != nil {
		return nil, eris.Wrapf(err, "linker: province %s: load municipalities", province)
	}
	if len(munis) == 0 {
		log.Warn("no municipalities for province, postal codes will stay unlinked",
			zap.Int("postal_codes", len(codes)))
	}

	ps := &provinceSummary{}
	err = l.store.InTx(ctx, func(tx store.Session) error {
		for _, code := range codes {
			linked, err := l.linkOne(ctx, tx, log, code, munis)
			if err != nil {
				return err
			}
			if linked == 0 {
				ps.unlinked++
			}
			ps.links += linked
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "linker: province %s", province)
	}

	log.Info("province linked",
		zap.Int("postal_codes", len(codes)),
		zap.Int("links", ps.links),
		zap.Int("unlinked", ps.unlinked),
	)
	return ps, nil
}

// linkOne links a single postal code against every municipality of its
// province. Geometry is loaded lazily; a stored record without
// geometry on either side is a data error, never silently skipped.
func (l *Linker) linkOne(ctx context.Context, tx store.Session, log *zap.Logger, code string, munis []*model.Municipality) (int, error) {
	shape, err := l.store.PostalCodeGeometry(ctx, code)
	if err != nil {
		return 0, eris.Wrapf(err, "postal code %s", code)
	}

	linked := 0
	closestDist := math.Inf(1)
	closestCode := ""
	for _, m := range munis {
		if m.Geom == nil {
			return 0, eris.Wrapf(store.ErrNoGeometry, "municipality %s", m.Code)
		}
		d := shape.DistanceTo(m.Geom)
		if d < closestDist {
			closestDist = d
			closestCode = m.Code
		}
		if d <= l.cfg.Threshold {
			if err := tx.AddLink(ctx, m.Code, code); err != nil {
				return 0, eris.Wrapf(err, "link %s to %s", code, m.Code)
			}
			linked++
		}
	}

	if linked == 0 {
		fields := []zap.Field{
			zap.String("postal_code", code),
			zap.Float64("threshold", l.cfg.Threshold),
		}
		if closestCode != "" {
			fields = append(fields,
				zap.String("closest_municipality", closestCode),
				zap.Float64("closest_distance", closestDist),
			)
		}
		log.Warn("no municipality within threshold", fields...)
	}
	return linked, nil
}
