package geo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Dataset describes one layer to load.
type Dataset struct {
	ID      string   `yaml:"id" toml:"id"`
	Name    string   `yaml:"name" toml:"name"`
	Path    string   `yaml:"path" toml:"path"`
	MinZoom *float64 `yaml:"minZoom,omitempty" toml:"minZoom,omitempty"`
	MaxZoom *float64 `yaml:"maxZoom,omitempty" toml:"maxZoom,omitempty"`
	Fill    string   `yaml:"fill,omitempty" toml:"fill,omitempty"`
	Stroke  string   `yaml:"stroke,omitempty" toml:"stroke,omitempty"`
}

// Manifest lists datasets in draw order, bottom layer first.
type Manifest struct {
	Datasets []Dataset `yaml:"datasets" toml:"datasets"`
}

// LoadManifest reads a YAML (.yaml, .yml) or TOML (.toml) manifest. Relative
// dataset paths are resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	seen := make(map[string]bool, len(m.Datasets))
	for i := range m.Datasets {
		d := &m.Datasets[i]
		if d.Path == "" {
			return nil, fmt.Errorf("manifest %s: dataset %d has no path", path, i)
		}
		if !filepath.IsAbs(d.Path) {
			d.Path = filepath.Join(base, d.Path)
		}
		if d.ID == "" {
			d.ID = datasetID(d.Path)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("manifest %s: duplicate dataset id %q", path, d.ID)
		}
		seen[d.ID] = true
	}
	return &m, nil
}

// Discover builds a manifest from every GeoJSON file in dir, ordered by
// file name. A missing directory yields an empty manifest.
func Discover(dir string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".geojson", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	m := &Manifest{}
	for _, n := range names {
		id := datasetID(n)
		m.Datasets = append(m.Datasets, Dataset{ID: id, Name: id, Path: filepath.Join(dir, n)})
	}
	return m, nil
}

// LoadAll loads every dataset in order and stops at the first failure, so a
// broken file aborts startup instead of rendering a partial map.
func LoadAll(m *Manifest) ([]*Collection, error) {
	out := make([]*Collection, 0, len(m.Datasets))
	for _, d := range m.Datasets {
		c, err := Load(d.Path, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// datasetID creates a URL-safe ID from a file name.
func datasetID(name string) string {
	id := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
