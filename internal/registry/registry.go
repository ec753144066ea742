// Package registry holds the per-dataset configuration that drives the
// generic collector and feature parser: one entry per source instead of
// one collector implementation per source.
package registry

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/vivenda-group/geoseed-cli/internal/feature"
)

// Source names how a dataset is reached.
const (
	// SourceCatalog pages through the OpenDataSoft catalog records API.
	SourceCatalog = "catalog"
	// SourceArchive reads a bundled zip containing one GeoJSON file.
	SourceArchive = "archive"
	// SourceScrapeJob submits an asynchronous scrape job and fetches
	// its result dataset.
	SourceScrapeJob = "scrapejob"
)

// Dataset is one configured source.
type Dataset struct {
	Name      string          `yaml:"name"`
	Source    string          `yaml:"source"`
	Path      string          `yaml:"path"`
	BatchSize int             `yaml:"batch_size"`
	Mapping   feature.Mapping `yaml:"mapping"`
}

//go:embed datasets.yaml
var datasetsYAML []byte

// Load parses the embedded dataset definitions.
func Load() (map[string]Dataset, error) {
	var file struct {
		Datasets []Dataset `yaml:"datasets"`
	}
	if err := yaml.Unmarshal(datasetsYAML, &file); err != nil {
		return nil, eris.Wrap(err, "registry: parse datasets.yaml")
	}

	out := make(map[string]Dataset, len(file.Datasets))
	for _, d := range file.Datasets {
		if d.Name == "" {
			return nil, eris.New("registry: dataset with empty name")
		}
		if d.BatchSize <= 0 {
			d.BatchSize = 100
		}
		if _, dup := out[d.Name]; dup {
			return nil, eris.Errorf("registry: duplicate dataset %q", d.Name)
		}
		out[d.Name] = d
	}
	return out, nil
}

// Get returns one dataset definition by name.
func Get(name string) (Dataset, error) {
	all, err := Load()
	if err != nil {
		return Dataset{}, err
	}
	d, ok := all[name]
	if !ok {
		return Dataset{}, eris.Errorf("registry: unknown dataset %q", name)
	}
	return d, nil
}

// Names returns the configured dataset names, sorted.
func Names() ([]string, error) {
	all, err := Load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
