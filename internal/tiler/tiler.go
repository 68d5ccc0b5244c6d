// Package tiler defines the vector tile engine used to serve dataset layers
// as MVT and export them as PMTiles archives.
package tiler

import (
	"io"

	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-census/internal/layer"
)

// Config controls archive export.
type Config struct {
	MinZoom int
	MaxZoom int
}

// Normalize clamps the zoom range to [0, 14] and defaults an empty range
// to 0..14.
func (c Config) Normalize() Config {
	if c.MinZoom < 0 {
		c.MinZoom = 0
	}
	if c.MaxZoom <= 0 || c.MaxZoom > 14 {
		c.MaxZoom = 14
	}
	if c.MinZoom > c.MaxZoom {
		c.MinZoom = c.MaxZoom
	}
	return c
}

// Tiler renders dataset layers into vector tiles.
type Tiler interface {
	// Name returns the engine name.
	Name() string
	// Tile encodes one gzipped MVT tile, or nil when nothing intersects it.
	Tile(l *layer.Layer, t maptile.Tile) ([]byte, error)
	// Archive writes every non-empty tile in the zoom range as PMTiles.
	Archive(l *layer.Layer, w io.Writer, cfg Config) error
}
