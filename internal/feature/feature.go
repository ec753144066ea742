// Package feature parses source GeoJSON-like feature records into the
// uniform entity shape, driven by a per-dataset field mapping.
package feature

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/vivenda-group/geoseed-cli/internal/geometry"
	"github.com/vivenda-group/geoseed-cli/internal/model"
)

// Encoding names the physical layout of a feature record.
const (
	// EncodingFeature is the standard GeoJSON layout: a properties
	// object with a sibling geometry object.
	EncodingFeature = "feature"
	// EncodingGeoShape is the OpenDataSoft layout: properties at the
	// record root with the geometry nested under geo_shape.geometry.
	EncodingGeoShape = "geo_shape"
)

// Mapping tells the parser which property keys carry each entity field
// for one dataset. Empty keys are not extracted.
type Mapping struct {
	Encoding          string `yaml:"encoding"`
	NameField         string `yaml:"name_field"`
	CodeField         string `yaml:"code_field"`
	ProvinceField     string `yaml:"province_field"`
	RegionField       string `yaml:"region_field"`
	MunicipalityField string `yaml:"municipality_field"`
	// CodeWidth left-pads numeric codes with zeros (5 for municipality
	// codes, where sources report 8019 for Barcelona's 08019).
	CodeWidth int `yaml:"code_width"`
}

// SkipError marks a single malformed record that is excluded from its
// batch without aborting the run. Raw carries a truncated copy of the
// offending record for schema-drift diagnosis.
type SkipError struct {
	Reason string
	Raw    string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("feature: skip record: %s", e.Reason)
}

// IsSkip reports whether err is a per-record skip.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// ErrSourceFormat marks a structurally invalid container (for example a
// missing top-level features array). It aborts the whole run.
var ErrSourceFormat = eris.New("feature: invalid source format")

const rawTruncateLen = 256

func skip(raw json.RawMessage, format string, args ...any) error {
	s := string(raw)
	if len(s) > rawTruncateLen {
		s = s[:rawTruncateLen] + "..."
	}
	return &SkipError{Reason: fmt.Sprintf(format, args...), Raw: s}
}

type collection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// ParseCollection decodes a GeoJSON feature collection and returns the
// raw features. A container without a features array is a source
// format error, not a skip.
func ParseCollection(data []byte) ([]json.RawMessage, error) {
	var c collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(ErrSourceFormat, err.Error())
	}
	if c.Features == nil {
		return nil, eris.Wrap(ErrSourceFormat, "no features array")
	}
	return c.Features, nil
}

type geoShapeWrapper struct {
	Geometry json.RawMessage `json:"geometry"`
}

// Parse converts one raw feature record into an entity according to the
// mapping. Malformed records return a SkipError; only undecodable
// record envelopes do too, since the container was already validated.
func Parse(raw json.RawMessage, m Mapping) (*model.Entity, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, skip(raw, "decode record: %v", err)
	}

	props := fields
	var geomRaw json.RawMessage

	switch m.Encoding {
	case EncodingGeoShape:
		wrapped, ok := fields["geo_shape"]
		if !ok {
			return nil, skip(raw, "no geo_shape")
		}
		var gs geoShapeWrapper
		if err := json.Unmarshal(wrapped, &gs); err != nil {
			return nil, skip(raw, "decode geo_shape: %v", err)
		}
		geomRaw = gs.Geometry
	default:
		if p, ok := fields["properties"]; ok {
			var pm map[string]json.RawMessage
			if err := json.Unmarshal(p, &pm); err != nil {
				return nil, skip(raw, "decode properties: %v", err)
			}
			props = pm
		} else {
			return nil, skip(raw, "no properties")
		}
		geomRaw = fields["geometry"]
	}

	if len(geomRaw) == 0 || string(geomRaw) == "null" {
		return nil, skip(raw, "no geometry")
	}
	shape, err := geometry.FromGeoJSON(geomRaw)
	if err != nil {
		return nil, skip(raw, "parse geometry: %v", err)
	}

	e := &model.Entity{Geom: shape}

	if m.NameField != "" {
		name, err := stringField(props, m.NameField, 0)
		if err != nil || strings.TrimSpace(name) == "" {
			return nil, skip(raw, "name field %q absent or blank", m.NameField)
		}
		e.Name = strings.TrimSpace(name)
	}
	if m.CodeField != "" {
		code, err := stringField(props, m.CodeField, m.CodeWidth)
		if err != nil {
			return nil, skip(raw, "code field %q: %v", m.CodeField, err)
		}
		e.Code = code
	}
	if m.ProvinceField != "" {
		if v, err := stringField(props, m.ProvinceField, 2); err == nil {
			e.ProvinceCode = v
		}
	}
	if m.RegionField != "" {
		if v, err := stringField(props, m.RegionField, 0); err == nil {
			e.RegionCode = v
		}
	}
	if m.MunicipalityField != "" {
		v, err := stringField(props, m.MunicipalityField, 5)
		if err != nil {
			return nil, skip(raw, "municipality field %q: %v", m.MunicipalityField, err)
		}
		e.MunicipalityCode = v
	}

	return e, nil
}

// stringField coerces a property to a string. Sources disagree on
// whether governmental codes are JSON strings or numbers; both are
// accepted, with numbers optionally zero-padded to width.
func stringField(props map[string]json.RawMessage, key string, width int) (string, error) {
	raw, ok := props[key]
	if !ok {
		return "", eris.Errorf("missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if width > 0 && len(s) < width {
			s = strings.Repeat("0", width-len(s)) + s
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		i, err := n.Int64()
		if err != nil {
			return "", eris.Errorf("not an integer: %s", n)
		}
		if width > 0 {
			return fmt.Sprintf("%0*d", width, i), nil
		}
		return strconv.FormatInt(i, 10), nil
	}

	return "", eris.Errorf("not a string or number")
}
