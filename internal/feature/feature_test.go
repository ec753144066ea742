package feature

import (
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var polygonJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`

func TestParseCollection(t *testing.T) {
	raws, err := ParseCollection([]byte(`{"type":"FeatureCollection","features":[{"a":1},{"b":2}]}`))
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}

func TestParseCollectionNoFeaturesIsFatal(t *testing.T) {
	_, err := ParseCollection([]byte(`{"type":"FeatureCollection"}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSourceFormat))
	assert.False(t, IsSkip(err))

	_, err = ParseCollection([]byte(`not json`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSourceFormat))
}

func TestParseFeatureEncoding(t *testing.T) {
	raw := json.RawMessage(`{
		"properties": {"NOMBRE": "Sants", "COD_MUN": "08019"},
		"geometry": ` + polygonJSON + `
	}`)
	m := Mapping{
		Encoding:          EncodingFeature,
		NameField:         "NOMBRE",
		MunicipalityField: "COD_MUN",
	}

	e, err := Parse(raw, m)
	require.NoError(t, err)
	assert.Equal(t, "Sants", e.Name)
	assert.Equal(t, "08019", e.MunicipalityCode)
	require.NotNil(t, e.Geom)
	assert.Equal(t, "Polygon", e.Geom.Type())
}

func TestParseGeoShapeEncoding(t *testing.T) {
	raw := json.RawMessage(`{
		"mun_name": "Barcelona",
		"mun_code": "08019",
		"prov_code": "08",
		"geo_shape": {"type": "Feature", "geometry": ` + polygonJSON + `}
	}`)
	m := Mapping{
		Encoding:      EncodingGeoShape,
		NameField:     "mun_name",
		CodeField:     "mun_code",
		ProvinceField: "prov_code",
		CodeWidth:     5,
	}

	e, err := Parse(raw, m)
	require.NoError(t, err)
	assert.Equal(t, "Barcelona", e.Name)
	assert.Equal(t, "08019", e.Code)
	assert.Equal(t, "08", e.ProvinceCode)
}

func TestParseBothEncodingsAgree(t *testing.T) {
	asFeature := json.RawMessage(`{
		"properties": {"name": "Gracia", "code": 8019},
		"geometry": ` + polygonJSON + `
	}`)
	asGeoShape := json.RawMessage(`{
		"name": "Gracia",
		"code": 8019,
		"geo_shape": {"geometry": ` + polygonJSON + `}
	}`)

	mf := Mapping{Encoding: EncodingFeature, NameField: "name", CodeField: "code", CodeWidth: 5}
	mg := Mapping{Encoding: EncodingGeoShape, NameField: "name", CodeField: "code", CodeWidth: 5}

	a, err := Parse(asFeature, mf)
	require.NoError(t, err)
	b, err := Parse(asGeoShape, mg)
	require.NoError(t, err)

	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.Code, b.Code)
	assert.InDelta(t, 0.0, a.Geom.DistanceTo(b.Geom), 1e-12)
}

func TestParseNumericCodePadding(t *testing.T) {
	raw := json.RawMessage(`{
		"properties": {"name": "Valencia", "code": 46250},
		"geometry": ` + polygonJSON + `
	}`)
	m := Mapping{Encoding: EncodingFeature, NameField: "name", CodeField: "code", CodeWidth: 5}

	e, err := Parse(raw, m)
	require.NoError(t, err)
	assert.Equal(t, "46250", e.Code)

	raw = json.RawMessage(`{
		"properties": {"name": "Albacete", "code": 2003},
		"geometry": ` + polygonJSON + `
	}`)
	e, err = Parse(raw, m)
	require.NoError(t, err)
	assert.Equal(t, "02003", e.Code)
}

func TestParseSkips(t *testing.T) {
	m := Mapping{Encoding: EncodingFeature, NameField: "name", CodeField: "code"}

	tests := []struct {
		name string
		raw  string
	}{
		{"missing geometry", `{"properties":{"name":"x","code":"1"}}`},
		{"null geometry", `{"properties":{"name":"x","code":"1"},"geometry":null}`},
		{"blank name", `{"properties":{"name":"   ","code":"1"},"geometry":` + polygonJSON + `}`},
		{"missing name", `{"properties":{"code":"1"},"geometry":` + polygonJSON + `}`},
		{"uncoercible code", `{"properties":{"name":"x","code":{"nested":true}},"geometry":` + polygonJSON + `}`},
		{"fractional code", `{"properties":{"name":"x","code":1.5},"geometry":` + polygonJSON + `}`},
		{"no properties", `{"geometry":` + polygonJSON + `}`},
		{"undecodable record", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(json.RawMessage(tt.raw), m)
			require.Error(t, err)
			assert.True(t, IsSkip(err), "want skip, got %v", err)
		})
	}
}

func TestParseGeoShapeMissingWrapperSkips(t *testing.T) {
	m := Mapping{Encoding: EncodingGeoShape, NameField: "name"}
	_, err := Parse(json.RawMessage(`{"name":"x"}`), m)
	require.Error(t, err)
	assert.True(t, IsSkip(err))
}

func TestSkipErrorCarriesTruncatedRaw(t *testing.T) {
	big := make([]byte, 600)
	for i := range big {
		big[i] = 'a'
	}
	raw := json.RawMessage(`{"properties":{"pad":"` + string(big) + `"}}`)
	m := Mapping{Encoding: EncodingFeature, NameField: "name"}

	_, err := Parse(raw, m)
	require.Error(t, err)
	var se *SkipError
	require.ErrorAs(t, err, &se)
	assert.LessOrEqual(t, len(se.Raw), rawTruncateLen+3)
	assert.Contains(t, se.Raw, "...")
}

func TestOptionalFieldsDoNotSkip(t *testing.T) {
	// Province and region are best-effort extras.
	raw := json.RawMessage(`{
		"properties": {"name": "x", "code": "1"},
		"geometry": ` + polygonJSON + `
	}`)
	m := Mapping{
		Encoding:      EncodingFeature,
		NameField:     "name",
		CodeField:     "code",
		ProvinceField: "absent",
		RegionField:   "absent",
	}
	e, err := Parse(raw, m)
	require.NoError(t, err)
	assert.Empty(t, e.ProvinceCode)
	assert.Empty(t, e.RegionCode)
}
