package server

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/plat-census/internal/geo"
	"github.com/joeblew999/plat-census/internal/layer"
)

// LoadLayers loads the datasets named by manifestPath, or every GeoJSON
// file under <dataDir>/sources when manifestPath is empty, and builds one
// styled layer per dataset in draw order. Any dataset that fails to load
// fails the whole call; the error names the path.
func LoadLayers(dataDir, manifestPath string, logger *log.Logger) ([]*layer.Layer, error) {
	var (
		m   *geo.Manifest
		err error
	)
	if manifestPath != "" {
		m, err = geo.LoadManifest(manifestPath)
	} else {
		m, err = geo.Discover(filepath.Join(dataDir, "sources"))
	}
	if err != nil {
		return nil, err
	}

	collections, err := geo.LoadAll(m)
	if err != nil {
		return nil, err
	}

	layers := make([]*layer.Layer, 0, len(collections))
	for i, c := range collections {
		d := m.Datasets[i]
		l, err := layer.Build(d.ID, c, layer.Labeled(d.Fill, d.Stroke),
			layer.WithTitle(d.Name),
			layer.WithZoomRange(d.MinZoom, d.MaxZoom),
		)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Path, err)
		}
		logger.Info("loaded dataset", "layer", l.ID, "features", len(l.Features), "path", d.Path)
		layers = append(layers, l)
	}
	return layers, nil
}
