// Package model defines the domain entities produced by the ingestion
// pipeline: municipalities, postal codes, neighborhoods, and listings.
package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/geometry"
)

var municipalityCodeRe = regexp.MustCompile(`^\d{5}$`)

// Entity is the uniform shape every source record is normalized into
// before it is converted to a concrete domain type. Fields not reported
// by a given source are left empty.
type Entity struct {
	Code             string
	Name             string
	ProvinceCode     string
	RegionCode       string
	MunicipalityCode string
	Geom             *geometry.Shape
}

// Municipality is the lowest-level administrative unit, identified by a
// 5-digit national code (province code followed by local code).
type Municipality struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	ProvinceCode string          `json:"province_code"`
	RegionCode   string          `json:"region_code,omitempty"`
	Geom         *geometry.Shape `json:"-"`
}

// Validate checks the municipality code invariants: five digits, with
// the first two equal to the province code.
func (m *Municipality) Validate() error {
	if !municipalityCodeRe.MatchString(m.Code) {
		return eris.Errorf("model: municipality code %q is not a 5-digit code", m.Code)
	}
	if m.ProvinceCode == "" {
		return eris.Errorf("model: municipality %s has no province code", m.Code)
	}
	if !strings.HasPrefix(m.Code, m.ProvinceCode) {
		return eris.Errorf("model: municipality code %s does not start with province code %s", m.Code, m.ProvinceCode)
	}
	return nil
}

// PostalCode is a postal routing area with its own polygon. Links to
// municipalities are established only by the proximity linker.
type PostalCode struct {
	Code string          `json:"code"`
	Geom *geometry.Shape `json:"-"`
}

// ProvinceCode derives the province from the first two characters of
// the postal code. Identifiers shorter than two characters are a
// configuration error, never a per-record skip.
func (p *PostalCode) ProvinceCode() (string, error) {
	if len(p.Code) < 2 {
		return "", eris.Errorf("model: postal code %q is too short to derive a province", p.Code)
	}
	return p.Code[:2], nil
}

// Neighborhood is a sub-municipal area owned by exactly one
// municipality. The numeric id is assigned by the store.
type Neighborhood struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	MunicipalityCode string          `json:"municipality_code"`
	Geom             *geometry.Shape `json:"-"`
}

// Listing is a real-estate listing reported by the scrape-job source.
// The source only ever reports a municipality, never a postal code.
type Listing struct {
	SourceID         string          `json:"source_id"`
	Title            string          `json:"title"`
	MunicipalityName string          `json:"municipality_name"`
	// MunicipalityCode is set when the reported municipality name
	// resolves to a seeded municipality; empty otherwise.
	MunicipalityCode string          `json:"municipality_code,omitempty"`
	Operation        string          `json:"operation,omitempty"`
	PropertyType     string          `json:"property_type,omitempty"`
	Price            float64         `json:"price,omitempty"`
	URL              string          `json:"url,omitempty"`
	Geom             *geometry.Shape `json:"-"`
}

// MunicipalityFromEntity converts a parsed entity into a municipality,
// validating the code invariants.
func MunicipalityFromEntity(e *Entity) (*Municipality, error) {
	m := &Municipality{
		Code:         e.Code,
		Name:         e.Name,
		ProvinceCode: e.ProvinceCode,
		RegionCode:   e.RegionCode,
		Geom:         e.Geom,
	}
	// Sources that omit an explicit province column still satisfy the
	// prefix invariant.
	if m.ProvinceCode == "" && len(m.Code) >= 2 {
		m.ProvinceCode = m.Code[:2]
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// PostalCodeFromEntity converts a parsed entity into a postal code.
func PostalCodeFromEntity(e *Entity) (*PostalCode, error) {
	p := &PostalCode{Code: e.Code, Geom: e.Geom}
	if _, err := p.ProvinceCode(); err != nil {
		return nil, err
	}
	return p, nil
}

// NeighborhoodFromEntity converts a parsed entity into a neighborhood.
// Geometry is required for neighborhoods.
func NeighborhoodFromEntity(e *Entity) (*Neighborhood, error) {
	if e.Geom == nil {
		return nil, eris.Errorf("model: neighborhood %q has no geometry", e.Name)
	}
	if e.MunicipalityCode == "" {
		return nil, eris.Errorf("model: neighborhood %q has no municipality code", e.Name)
	}
	return &Neighborhood{
		Name:             e.Name,
		MunicipalityCode: e.MunicipalityCode,
		Geom:             e.Geom,
	}, nil
}
