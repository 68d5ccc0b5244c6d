// Package gotiler renders dataset layers into Mapbox Vector Tiles in pure
// Go, using paulmach/orb for clipping, simplification and encoding.
//
// Tiles are cut on demand from the in-memory WGS84 geometries, so serving
// /tiles/{layer}/{z}/{x}/{y} needs no preprocessing step. Archive walks the
// same code over a zoom range to export a PMTiles file.
package gotiler

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-census/internal/geo"
	"github.com/joeblew999/plat-census/internal/layer"
	"github.com/joeblew999/plat-census/internal/pmtiles"
	"github.com/joeblew999/plat-census/internal/tiler"
)

// GoTiler implements tiler.Tiler using pure Go libraries.
type GoTiler struct{}

// New creates a new GoTiler.
func New() *GoTiler {
	return &GoTiler{}
}

// Name returns the engine name.
func (g *GoTiler) Name() string {
	return "go"
}

// Tile encodes the features of l that intersect t.
func (g *GoTiler) Tile(l *layer.Layer, t maptile.Tile) ([]byte, error) {
	tileBound := t.Bound()
	var hits []*geo.Feature
	for _, f := range l.Features {
		if geometryIntersectsTile(f.Geometry, tileBound) {
			hits = append(hits, f)
		}
	}
	return g.createMVT(t, hits, l.ID)
}

// Archive writes l as PMTiles for the configured zoom range.
func (g *GoTiler) Archive(l *layer.Layer, w io.Writer, cfg tiler.Config) error {
	cfg = cfg.Normalize()

	var tiles []pmtiles.Tile
	var bounds orb.Bound
	for i, f := range l.Features {
		if i == 0 {
			bounds = f.Geometry.Bound()
		} else {
			bounds = bounds.Union(f.Geometry.Bound())
		}
	}

	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		byTile := make(map[maptile.Tile][]*geo.Feature)
		for _, f := range l.Features {
			for _, t := range tilesInBounds(f.Geometry.Bound(), maptile.Zoom(z)) {
				byTile[t] = append(byTile[t], f)
			}
		}
		for t, features := range byTile {
			data, err := g.createMVT(t, features, l.ID)
			if err != nil {
				return fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
			}
			if data == nil {
				continue
			}
			tiles = append(tiles, pmtiles.Tile{Z: uint8(t.Z), X: t.X, Y: t.Y, Data: data})
		}
	}

	return pmtiles.Write(w, tiles, pmtiles.Archive{
		Name:    l.ID,
		MinZoom: uint8(cfg.MinZoom),
		MaxZoom: uint8(cfg.MaxZoom),
		Bounds:  [4]float64{bounds.Min.Lon(), bounds.Min.Lat(), bounds.Max.Lon(), bounds.Max.Lat()},
	})
}

// createMVT creates an MVT tile from features. It returns nil when nothing
// survives clipping.
func (g *GoTiler) createMVT(tile maptile.Tile, features []*geo.Feature, layerName string) ([]byte, error) {
	tileBound := tile.Bound()
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if !geometryIntersectsTile(f.Geometry, tileBound) {
			continue
		}
		// GeoJSON clones the geometry; Clip and ProjectToTile mutate in place.
		fc.Append(f.GeoJSON())
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	l := mvt.NewLayer(layerName, fc)

	if epsilon := simplifyEpsilon(tile.Z); epsilon > 0 {
		l.Simplify(simplify.DouglasPeucker(epsilon))
	}
	l.Clip(tileBound)
	l.ProjectToTile(tile)
	l.RemoveEmpty(0.5, 0.5)

	if len(l.Features) == 0 {
		return nil, nil
	}
	return mvt.MarshalGzipped(mvt.Layers{l})
}

// geometryIntersectsTile checks if a geometry truly intersects a tile,
// beyond a bounding box overlap.
func geometryIntersectsTile(geom orb.Geometry, tileBound orb.Bound) bool {
	if !geom.Bound().Intersects(tileBound) {
		return false
	}

	switch g := geom.(type) {
	case orb.Point:
		return tileBound.Contains(g)

	case orb.MultiPoint:
		for _, p := range g {
			if tileBound.Contains(p) {
				return true
			}
		}
		return false

	case orb.Polygon:
		for _, ring := range g {
			if ringTouchesBound(ring, tileBound) {
				return true
			}
		}
		// No edge reaches the tile, so it is either inside the polygon or
		// outside it entirely.
		corners := []orb.Point{
			tileBound.Min,
			{tileBound.Max[0], tileBound.Min[1]},
			tileBound.Max,
			{tileBound.Min[0], tileBound.Max[1]},
			tileBound.Center(),
		}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false

	case orb.MultiPolygon:
		for _, poly := range g {
			if geometryIntersectsTile(poly, tileBound) {
				return true
			}
		}
		return false

	default:
		// boundary datasets are areal; trust the bounding box for the rest
		return true
	}
}

// ringTouchesBound reports whether any edge of ring has a point inside b.
func ringTouchesBound(ring orb.Ring, b orb.Bound) bool {
	for i := range ring {
		if segmentTouchesBound(ring[i], ring[(i+1)%len(ring)], b) {
			return true
		}
	}
	return false
}

// segmentTouchesBound clips the segment ab against b (Liang-Barsky) and
// reports whether anything is left.
func segmentTouchesBound(a, c orb.Point, b orb.Bound) bool {
	dx, dy := c[0]-a[0], c[1]-a[1]
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, a[0] - b.Min[0]},
		{dx, b.Max[0] - a[0]},
		{-dy, a[1] - b.Min[1]},
		{dy, b.Max[1] - a[1]},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			t0 = max(t0, r)
		} else {
			if r < t0 {
				return false
			}
			t1 = min(t1, r)
		}
	}
	return true
}

// tilesInBounds returns all tiles at a zoom level that intersect a bounding box.
func tilesInBounds(bounds orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	minTile := maptile.At(bounds.Min, zoom)
	maxTile := maptile.At(bounds.Max, zoom)

	minX, maxX := minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var tiles []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// simplifyEpsilon returns the Douglas-Peucker tolerance in degrees for a
// zoom level: roughly a quarter pixel, and none at street level.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	if zoom >= 12 {
		return 0
	}
	// degrees per pixel at the equator
	perPixel := 360.0 / (256.0 * float64(uint32(1)<<uint32(zoom)))
	return perPixel / 4
}

// TileAt returns the tile containing a Web Mercator coordinate.
func TileAt(pt orb.Point, zoom maptile.Zoom) maptile.Tile {
	return maptile.At(project.Point(pt, project.Mercator.ToWGS84), zoom)
}

var _ tiler.Tiler = (*GoTiler)(nil)
