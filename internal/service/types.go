// Package service contains the stateful pieces behind the HTTP API:
// browser sessions with their highlight controllers, the highlight event
// bus, and the source and tile file listings.
package service

// LayerInfo describes a loaded dataset layer.
type LayerInfo struct {
	ID           string     `json:"id" doc:"Layer identifier" example:"counties"`
	Title        string     `json:"title" doc:"Display name" example:"California counties"`
	FeatureCount int        `json:"featureCount" doc:"Number of features" example:"58"`
	MinZoom      *float64   `json:"minZoom,omitempty" doc:"Lowest zoom at which the layer is drawn"`
	MaxZoom      *float64   `json:"maxZoom,omitempty" doc:"Zoom from which the layer is hidden"`
	Bound        [4]float64 `json:"bound" doc:"Extent in EPSG:3857 as [minX, minY, maxX, maxY]"`
}

// SourceFile represents a GeoJSON source file.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"TIGER2018_COUNTY_california.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// TileFile represents a PMTiles file.
type TileFile struct {
	Name string `json:"name" doc:"PMTiles file name" example:"counties.pmtiles"`
	Size string `json:"size" doc:"Human-readable file size" example:"5.4 MB"`
}
