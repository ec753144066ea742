package seeder

import (
	"encoding/json"

	"github.com/vivenda-group/geoseed-cli/internal/collector"
	"github.com/vivenda-group/geoseed-cli/internal/feature"
	"github.com/vivenda-group/geoseed-cli/internal/model"
	"github.com/vivenda-group/geoseed-cli/internal/registry"
)

// Per-dataset parse functions. Conversion failures on single records
// are skips, consistent with the parser's own skip policy.

func parseMunicipality(ds registry.Dataset) collector.ParseFunc[*model.Municipality] {
	return func(raw json.RawMessage) (*model.Municipality, error) {
		e, err := feature.Parse(raw, ds.Mapping)
		if err != nil {
			return nil, err
		}
		m, err := model.MunicipalityFromEntity(e)
		if err != nil {
			return nil, &feature.SkipError{Reason: err.Error(), Raw: truncate(raw)}
		}
		return m, nil
	}
}

func parsePostalCode(ds registry.Dataset) collector.ParseFunc[*model.PostalCode] {
	return func(raw json.RawMessage) (*model.PostalCode, error) {
		e, err := feature.Parse(raw, ds.Mapping)
		if err != nil {
			return nil, err
		}
		p, err := model.PostalCodeFromEntity(e)
		if err != nil {
			return nil, &feature.SkipError{Reason: err.Error(), Raw: truncate(raw)}
		}
		return p, nil
	}
}

func parseNeighborhood(ds registry.Dataset) collector.ParseFunc[*model.Neighborhood] {
	return func(raw json.RawMessage) (*model.Neighborhood, error) {
		e, err := feature.Parse(raw, ds.Mapping)
		if err != nil {
			return nil, err
		}
		n, err := model.NeighborhoodFromEntity(e)
		if err != nil {
			return nil, &feature.SkipError{Reason: err.Error(), Raw: truncate(raw)}
		}
		return n, nil
	}
}

func truncate(raw json.RawMessage) string {
	const n = 256
	s := string(raw)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
