// Package server assembles the census map server: datasets, map host,
// sessions, the Huma API and the map page.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-census/internal/api"
	"github.com/joeblew999/plat-census/internal/api/mapui"
	"github.com/joeblew999/plat-census/internal/db"
	"github.com/joeblew999/plat-census/internal/highlight"
	"github.com/joeblew999/plat-census/internal/layer"
	"github.com/joeblew999/plat-census/internal/logging"
	"github.com/joeblew999/plat-census/internal/mapview"
	"github.com/joeblew999/plat-census/internal/service"
	"github.com/joeblew999/plat-census/internal/templates"
	"github.com/joeblew999/plat-census/internal/tiler/gotiler"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       int
	DataDir    string
	Manifest   string // dataset manifest; empty discovers <DataDir>/sources
	InfoOn     highlight.InfoOn
	SessionTTL time.Duration
	NoDB       bool // skip the DuckDB attribute store
	Logger     *log.Logger
}

// Server is the census HTTP server.
type Server struct {
	config   Config
	logger   *log.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
}

// New loads every dataset and creates the server. A dataset that cannot be
// loaded is an error: the server does not start with a partial map.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	layers, err := LoadLayers(cfg.DataDir, cfg.Manifest, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return NewWithLayers(cfg, layers)
}

// NewWithLayers creates the server over already built layers.
func NewWithLayers(cfg Config, layers []*layer.Layer) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if !cfg.InfoOn.Valid() {
		cfg.InfoOn = highlight.InfoOnClick
	}
	logger := cfg.Logger

	host, err := mapview.New(mapview.OSM, layers...)
	if err != nil {
		return nil, err
	}

	renderer, err := templates.Default()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-census API", api.Version)
	humaConfig.Info.Description = "Census boundary map server: dataset layers, vector tiles and map highlight sessions."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humaAPI,
		renderer: renderer,
	}

	// DuckDB is optional; the map works without it
	if !cfg.NoDB {
		conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "census"})
		if err != nil {
			logger.Warn("duckdb unavailable", "err", err)
		} else if n, err := db.IndexFeatures(context.Background(), conn, layers); err != nil {
			logger.Warn("indexing features failed", "err", err)
			conn.Close()
		} else {
			logger.Info("indexed features", "rows", n)
			s.db = conn
		}
	}

	s.services = &api.Services{
		Host: host,
		Sessions: service.NewSessionService(host, service.SessionConfig{
			InfoOn: cfg.InfoOn,
			TTL:    cfg.SessionTTL,
			Logger: logger,
		}),
		Tile:   service.NewTileService(cfg.DataDir),
		Source: service.NewSourceService(cfg.DataDir),
		Tiler:  gotiler.New(),
		DB:     s.db,
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session service.
func (s *Server) Sessions() *service.SessionService {
	return s.services.Sessions
}

// Host returns the map host.
func (s *Server) Host() *mapview.Host {
	return s.services.Host
}

// Run expires idle sessions until ctx is done.
func (s *Server) Run(ctx context.Context) {
	every := s.config.SessionTTL / 4
	if every < time.Second {
		every = time.Second
	}
	logging.FromContext(ctx).Debug("session sweeper started", "ttl", s.config.SessionTTL, "every", every)
	s.services.Sessions.RunSweeper(ctx, every)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(s.config.DataDir, s.db != nil, string(s.config.InfoOn), s.services.Host.BaseLayer()).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db).RegisterRoutes(s.humaAPI)

	// Register map SSE routes using Huma + Datastar SDK
	mapui.NewMapHandler(s.services.Sessions, s.renderer).RegisterRoutes(s.humaAPI)

	// Page routes
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Execute(w, "page", s.pageData()); err != nil {
		s.logger.Error("rendering page", "err", err)
	}
}

func (s *Server) pageData() templates.PageData {
	host := s.services.Host
	base := host.BaseLayer()
	data := templates.PageData{
		Title:       "Census boundaries",
		BaseURL:     base.URLTemplate,
		Attribution: base.Attribution,
		Zoom:        2,
		Placeholder: highlight.Placeholder,
	}

	var (
		bound orb.Bound
		found bool
	)
	for _, l := range host.Layers() {
		data.Layers = append(data.Layers, templates.PageLayer{
			ID:      l.ID,
			Title:   l.Title,
			MinZoom: l.MinZoom,
			MaxZoom: l.MaxZoom,
		})
		for _, f := range l.Features {
			if !found {
				bound, found = f.Bound, true
			} else {
				bound = bound.Union(f.Bound)
			}
		}
	}
	if found {
		c := bound.Center()
		data.Center = [2]float64{c.X(), c.Y()}
		data.Zoom = fitZoom(bound, 1024)
	}
	return data
}

// fitZoom returns the integer zoom at which b fits in px pixels, within
// [2, 12].
func fitZoom(b orb.Bound, px float64) float64 {
	extent := math.Max(b.Max.X()-b.Min.X(), b.Max.Y()-b.Min.Y())
	if extent <= 0 {
		return 12
	}
	z := math.Floor(math.Log2(2 * math.Pi * 6378137 * px / (256 * extent)))
	return math.Max(2, math.Min(12, z))
}
