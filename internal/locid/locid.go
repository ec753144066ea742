// Package locid encodes and decodes the composite location identifier
// "{municipality}-{postalCode}-{neighborhood}" used on outward-facing
// surfaces. The third slot holds the sentinel "XXX" when no
// neighborhood applies.
package locid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/store"
)

// NoNeighborhood is the literal third slot of identifiers without a
// neighborhood.
const NoNeighborhood = "XXX"

// ErrFormat marks identifiers that cannot be parsed at all: wrong
// token count or non-numeric ids. Distinct from ErrUnknownEntity so
// callers can map them to different API responses.
var ErrFormat = eris.New("locid: invalid identifier format")

// ErrUnknownEntity marks well-formed identifiers referencing entities
// the store does not hold.
var ErrUnknownEntity = eris.New("locid: unknown entity")

// Location is a fully resolved identifier. Neighborhood is nil when
// the identifier carried the no-neighborhood sentinel.
type Location struct {
	Municipality *model.Municipality
	PostalCode   *model.PostalCode
	Neighborhood *model.Neighborhood
}

// Codec resolves identifiers against the store. It performs no I/O of
// its own beyond single-id lookups.
type Codec struct {
	store store.Store
}

// New builds a codec over st.
func New(st store.Store) *Codec {
	return &Codec{store: st}
}

// Encode renders the composite identifier for a municipality, a postal
// code and an optional neighborhood. The municipality code is rendered
// as its numeric value, without leading zeros.
func Encode(m *model.Municipality, p *model.PostalCode, n *model.Neighborhood) (string, error) {
	id, err := strconv.Atoi(m.Code)
	if err != nil {
		return "", eris.Wrapf(ErrFormat, "municipality code %q is not numeric", m.Code)
	}
	third := NoNeighborhood
	if n != nil {
		third = strconv.FormatInt(n.ID, 10)
	}
	return fmt.Sprintf("%d-%s-%s", id, p.Code, third), nil
}

// Decode parses and resolves one identifier. Malformed input is an
// ErrFormat; a well-formed identifier naming an absent entity is an
// ErrUnknownEntity. Postal-code ids are opaque strings that never
// contain a dash, so splitting on it is unambiguous.
func (c *Codec) Decode(ctx context.Context, id string) (*Location, error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		return nil, eris.Wrapf(ErrFormat, "%q: want 3 tokens, got %d", id, len(parts))
	}

	munID, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, eris.Wrapf(ErrFormat, "%q: municipality token %q is not an integer", id, parts[0])
	}

	loc := &Location{}

	loc.Municipality, err = c.store.Municipality(ctx, fmt.Sprintf("%05d", munID))
	if err != nil {
		return nil, lookupErr(err, id, "municipality %d", munID)
	}

	loc.PostalCode, err = c.store.PostalCode(ctx, parts[1])
	if err != nil {
		return nil, lookupErr(err, id, "postal code %s", parts[1])
	}

	if parts[2] != NoNeighborhood {
		nID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, eris.Wrapf(ErrFormat, "%q: neighborhood token %q is not an integer", id, parts[2])
		}
		loc.Neighborhood, err = c.store.Neighborhood(ctx, nID)
		if err != nil {
			return nil, lookupErr(err, id, "neighborhood %d", nID)
		}
	}

	return loc, nil
}

func lookupErr(err error, id, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if eris.Is(err, store.ErrNotFound) {
		return eris.Wrapf(ErrUnknownEntity, "%q: %s", id, what)
	}
	return eris.Wrapf(err, "locid: decode %q: %s", id, what)
}
