// Package store persists geo entities and proximity links behind a
// driver-agnostic interface with SQLite and Postgres backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/geometry"
	"github.com/vivenda-group/geoseed-cli/internal/model"
)

// Kind names an entity table.
type Kind string

const (
	KindMunicipalities Kind = "municipalities"
	KindPostalCodes    Kind = "postal_codes"
	KindNeighborhoods  Kind = "neighborhoods"
	KindListings       Kind = "listings"
)

// ErrNotFound is returned by single-id lookups when no row matches.
var ErrNotFound = eris.New("store: not found")

// Session is the write surface, only reachable inside a transaction.
// Writes outside InTx are not possible by construction.
type Session interface {
	CreateMunicipality(ctx context.Context, m *model.Municipality) error
	CreatePostalCode(ctx context.Context, p *model.PostalCode) error
	// CreateNeighborhood returns the store-assigned numeric id.
	CreateNeighborhood(ctx context.Context, n *model.Neighborhood) (int64, error)
	CreateListing(ctx context.Context, l *model.Listing) error
	// AddLink materializes the symmetric municipality-postal code
	// relation; inserting an existing pair is a no-op.
	AddLink(ctx context.Context, municipalityCode, postalCode string) error
	// Count is exposed in-session so the seeding idempotence guard
	// runs inside the same transaction as the writes.
	Count(ctx context.Context, kind Kind) (int64, error)
}

// Store is the persistence collaborator consumed by the pipeline.
type Store interface {
	// InTx runs fn inside one transaction, committing on nil and
	// rolling the whole transaction back on error.
	InTx(ctx context.Context, fn func(Session) error) error

	Municipality(ctx context.Context, code string) (*model.Municipality, error)
	// MunicipalityByName resolves a display name case- and
	// accent-insensitively (Cádiz matches CADIZ). Ties across
	// provinces resolve to the lowest code.
	MunicipalityByName(ctx context.Context, name string) (*model.Municipality, error)
	PostalCode(ctx context.Context, code string) (*model.PostalCode, error)
	Neighborhood(ctx context.Context, id int64) (*model.Neighborhood, error)

	// ListingsByMunicipality returns the listings whose reported
	// municipality resolved to the given code.
	ListingsByMunicipality(ctx context.Context, municipalityCode string) ([]*model.Listing, error)

	// MunicipalitiesByProvince loads every municipality of one
	// province, geometry included.
	MunicipalitiesByProvince(ctx context.Context, provinceCode string) ([]*model.Municipality, error)
	// PostalCodeIDs returns all postal code identifiers.
	PostalCodeIDs(ctx context.Context) ([]string, error)
	// PostalCodeGeometry loads one postal code's geometry lazily.
	// A stored row without geometry returns ErrNoGeometry.
	PostalCodeGeometry(ctx context.Context, code string) (*geometry.Shape, error)

	LinkedMunicipalities(ctx context.Context, postalCode string) ([]string, error)
	LinkedPostalCodes(ctx context.Context, municipalityCode string) ([]string, error)
	CountLinks(ctx context.Context) (int64, error)

	Count(ctx context.Context, kind Kind) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNoGeometry is returned when a persisted entity has no geometry
// but an operation requires one.
var ErrNoGeometry = eris.New("store: no geometry")

// tableFor maps a kind to its table name. The allowlist keeps generic
// count queries safe to interpolate.
func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindMunicipalities, KindPostalCodes, KindNeighborhoods, KindListings:
		return string(kind), nil
	default:
		return "", eris.Errorf("store: unknown entity kind %q", kind)
	}
}

func geomBytes(s *geometry.Shape) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return s.EWKB()
}

func geomFromBytes(data []byte) (*geometry.Shape, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return geometry.FromEWKB(data)
}
