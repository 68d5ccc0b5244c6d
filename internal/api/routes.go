// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-census/internal/db"
	"github.com/joeblew999/plat-census/internal/layer"
	"github.com/joeblew999/plat-census/internal/mapview"
	"github.com/joeblew999/plat-census/internal/service"
	"github.com/joeblew999/plat-census/internal/tiler"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Host     *mapview.Host
	Sessions *service.SessionService
	Tile     *service.TileService
	Source   *service.SourceService
	Tiler    tiler.Tiler
	DB       *sql.DB // nil when DuckDB is unavailable
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"counties"`
}

type LayerOutput struct {
	Body service.LayerInfo
}

type LayersOutput struct {
	Body []service.LayerInfo
}

type FeaturesOutput struct {
	Body *geojson.FeatureCollection
}

type StatsOutput struct {
	Body db.Stats
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Layers  int    `json:"layers" doc:"Number of loaded dataset layers" example:"2"`
}

type TileInput struct {
	Layer string `path:"layer" doc:"Layer ID" example:"counties"`
	Z     int    `path:"z" minimum:"0" maximum:"22" doc:"Zoom"`
	X     int    `path:"x" minimum:"0" doc:"Tile column"`
	Y     int    `path:"y" minimum:"0" doc:"Tile row"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	CacheControl    string `header:"Cache-Control"`
	Body            []byte
}

type OverlayInput struct {
	Session string `query:"session" required:"true" doc:"Map session ID"`
}

type OverlayBody struct {
	Session   string                     `json:"session" doc:"Map session ID"`
	Highlight string                     `json:"highlight" doc:"Highlighted feature ID, empty when idle"`
	Info      string                     `json:"info" doc:"Current info line"`
	Overlay   *geojson.FeatureCollection `json:"overlay" doc:"Overlay layer as GeoJSON (EPSG:4326)"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers dataset layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/features", h.GetLayerFeatures, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/stats", h.GetLayerStats, huma.OperationTags("layers"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// RegisterTiles registers tile listing and vector tile routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/tiles", h.GetTiles, huma.OperationTags("tiles"))
	huma.Get(api, "/tiles/{layer}/{z}/{x}/{y}", h.GetTile, huma.OperationTags("tiles"))
}

// RegisterOverlay registers the session overlay route.
func (h *APIHandler) RegisterOverlay(api huma.API) {
	huma.Get(api, "/api/v1/map/overlay", h.GetOverlay, huma.OperationTags("map"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	n := 0
	if h.svc != nil && h.svc.Host != nil {
		n = len(h.svc.Host.Layers())
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version, Layers: n}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	infos := []service.LayerInfo{}
	if h.svc == nil || h.svc.Host == nil {
		return &LayersOutput{Body: infos}, nil
	}
	for _, l := range h.svc.Host.Layers() {
		infos = append(infos, layerInfo(l))
	}
	return &LayersOutput{Body: infos}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	l, err := h.layer(input.ID)
	if err != nil {
		return nil, err
	}
	return &LayerOutput{Body: layerInfo(l)}, nil
}

func (h *APIHandler) GetLayerFeatures(ctx context.Context, input *IDInput) (*FeaturesOutput, error) {
	l, err := h.layer(input.ID)
	if err != nil {
		return nil, err
	}
	return &FeaturesOutput{Body: l.FeatureCollection()}, nil
}

func (h *APIHandler) GetLayerStats(ctx context.Context, input *IDInput) (*StatsOutput, error) {
	if _, err := h.layer(input.ID); err != nil {
		return nil, err
	}
	if h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	stats, err := db.LayerStats(ctx, h.svc.DB, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to compute layer stats", err)
	}
	return &StatsOutput{Body: stats}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) GetTiles(ctx context.Context, input *struct{}) (*struct{ Body []service.TileFile }, error) {
	if h.svc == nil || h.svc.Tile == nil {
		return &struct{ Body []service.TileFile }{Body: []service.TileFile{}}, nil
	}
	tiles, err := h.svc.Tile.List()
	if err != nil {
		return &struct{ Body []service.TileFile }{Body: []service.TileFile{}}, nil
	}
	return &struct{ Body []service.TileFile }{Body: tiles}, nil
}

// GetTile cuts one Mapbox Vector Tile. Tiles with no features are 204.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	l, err := h.layer(input.Layer)
	if err != nil {
		return nil, err
	}
	if h.svc.Tiler == nil {
		return nil, huma.Error503ServiceUnavailable("Tiler not available")
	}
	n := 1 << uint(input.Z)
	if input.X >= n || input.Y >= n {
		return nil, huma.Error400BadRequest("tile out of range for zoom")
	}

	data, err := h.svc.Tiler.Tile(l, maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z)))
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode tile", err)
	}
	if data == nil {
		return &TileOutput{Status: 204}, nil
	}
	return &TileOutput{
		Status:          200,
		ContentType:     "application/vnd.mapbox-vector-tile",
		ContentEncoding: "gzip",
		CacheControl:    "public, max-age=3600",
		Body:            data,
	}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *OverlayInput) (*struct{ Body OverlayBody }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("session not found")
	}
	sess, ok := h.svc.Sessions.Lookup(input.Session)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	snap := h.svc.Sessions.Snapshot(sess)
	return &struct{ Body OverlayBody }{Body: OverlayBody{
		Session:   sess.ID,
		Highlight: snap.Highlight,
		Info:      snap.Info,
		Overlay:   snap.Overlay,
	}}, nil
}

func (h *APIHandler) layer(id string) (*layer.Layer, error) {
	if h.svc == nil || h.svc.Host == nil {
		return nil, huma.Error404NotFound("layer not found")
	}
	l, ok := h.svc.Host.Layer(id)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return l, nil
}

func layerInfo(l *layer.Layer) service.LayerInfo {
	info := service.LayerInfo{
		ID:           l.ID,
		Title:        l.Title,
		FeatureCount: len(l.Features),
		MinZoom:      l.MinZoom,
		MaxZoom:      l.MaxZoom,
	}
	if len(l.Features) == 0 {
		return info
	}
	b := l.Features[0].Bound
	for _, f := range l.Features[1:] {
		b = b.Union(f.Bound)
	}
	info.Bound = [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	return info
}
