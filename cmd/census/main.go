package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-census/internal/highlight"
	"github.com/joeblew999/plat-census/internal/logging"
	"github.com/joeblew999/plat-census/internal/mapview"
	"github.com/joeblew999/plat-census/internal/server"
	"github.com/joeblew999/plat-census/internal/service"
	"github.com/joeblew999/plat-census/internal/tiler"
	"github.com/joeblew999/plat-census/internal/tiler/gotiler"
)

// Options defines all CLI flags and env vars for the census server.
// Flags: --host, --port, --data-dir, --manifest, --info-on, --session-ttl, --log-level, --no-db
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_MANIFEST, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir    string `doc:"Directory holding sources/, tiles/ and duckdb/" default:".data"`
	Manifest   string `doc:"Dataset manifest (.yaml or .toml); empty loads every file in <data-dir>/sources"`
	InfoOn     string `doc:"Events that write the info line: click or hover" default:"click"`
	SessionTTL string `name:"session-ttl" doc:"Idle time before a map session expires" default:"30m"`
	LogLevel   string `doc:"Log level: debug, info, warn, error" default:"info"`
	NoDB       bool   `name:"no-db" doc:"Run without the DuckDB attribute store"`
}

func newLogger(opts *Options) *log.Logger {
	level, err := logging.ParseLevel(opts.LogLevel)
	logger := logging.New(os.Stderr, level)
	if err != nil {
		logger.Warn("falling back to info", "err", err)
	}
	log.SetDefault(logger)
	return logger
}

func serverConfig(opts *Options, logger *log.Logger) (server.Config, error) {
	infoOn := highlight.InfoOn(opts.InfoOn)
	if !infoOn.Valid() {
		return server.Config{}, fmt.Errorf("--info-on must be click or hover, got %q", opts.InfoOn)
	}
	ttl, err := time.ParseDuration(opts.SessionTTL)
	if err != nil {
		return server.Config{}, fmt.Errorf("--session-ttl: %w", err)
	}
	return server.Config{
		Host:       opts.Host,
		Port:       opts.Port,
		DataDir:    opts.DataDir,
		Manifest:   opts.Manifest,
		InfoOn:     infoOn,
		SessionTTL: ttl,
		NoDB:       opts.NoDB,
		Logger:     logger,
	}, nil
}

func newServer(opts *Options, logger *log.Logger) (*server.Server, error) {
	cfg, err := serverConfig(opts, logger)
	if err != nil {
		return nil, err
	}
	return server.New(cfg)
}

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			srv     *server.Server
			httpSrv *http.Server
		)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			logger := newLogger(opts)
			ctx = logging.WithLogger(ctx, logger)

			var err error
			srv, err = newServer(opts, logger)
			if err != nil {
				logger.Fatal("startup failed", "err", err)
			}
			go srv.Run(ctx)

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-census map server starting...\n")
			fmt.Printf("  Map:     %s/\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Layers:  %d\n", len(srv.Host().Layers()))
			fmt.Println()
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server error", "err", err)
			}
		})

		hooks.OnStop(func() {
			cancel()
			if httpSrv != nil {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = httpSrv.Shutdown(shutdownCtx)
			}
			if srv != nil {
				_ = srv.Close()
			}
		})
	})

	cli.Root().Use = "census"
	cli.Root().Short = "Census boundary map server with click-to-inspect highlighting"
	cli.Root().Version = "0.1.0"

	cli.Root().AddCommand(specCommand(), tilesCommand(), inspectCommand())
	cli.Run()
}

// specCommand exports the OpenAPI spec (JSON by default, --yaml for YAML).
func specCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts)
			opts.NoDB = true
			srv, err := newServer(opts, logger)
			if err != nil {
				logger.Fatal("loading datasets", "err", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// tilesCommand exports one dataset layer as a PMTiles archive.
func tilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "Export a dataset layer as PMTiles",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts)
			layerID, _ := cmd.Flags().GetString("layer")
			out, _ := cmd.Flags().GetString("out")
			minZoom, _ := cmd.Flags().GetInt("min-zoom")
			maxZoom, _ := cmd.Flags().GetInt("max-zoom")

			layers, err := server.LoadLayers(opts.DataDir, opts.Manifest, logger)
			if err != nil {
				logger.Fatal("loading datasets", "err", err)
			}
			host, err := mapview.New(mapview.OSM, layers...)
			if err != nil {
				logger.Fatal("building map", "err", err)
			}
			l, ok := host.Layer(layerID)
			if !ok {
				logger.Fatal("unknown layer", "layer", layerID)
			}

			if out == "" {
				out, err = service.NewTileService(opts.DataDir).ArchivePath(l.ID)
				if err != nil {
					logger.Fatal("archive path", "err", err)
				}
			}
			f, err := os.Create(out)
			if err != nil {
				logger.Fatal("creating archive", "err", err)
			}

			t := gotiler.New()
			start := time.Now()
			err = t.Archive(l, f, tiler.Config{MinZoom: minZoom, MaxZoom: maxZoom})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(out)
				logger.Fatal("writing archive", "err", err)
			}
			logger.Info("archive written", "layer", l.ID, "engine", t.Name(), "path", out, "took", time.Since(start))
		}),
	}
	cmd.Flags().String("layer", "", "Layer ID to export")
	cmd.Flags().String("out", "", "Output path (default <data-dir>/tiles/<layer>.pmtiles)")
	cmd.Flags().Int("min-zoom", 0, "Lowest zoom level")
	cmd.Flags().Int("max-zoom", 10, "Highest zoom level")
	_ = cmd.MarkFlagRequired("layer")
	return cmd
}

// inspectCommand prints the info line for the topmost feature at a point.
func inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the info line of the region at a longitude/latitude",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			logger := newLogger(opts)
			lon, _ := cmd.Flags().GetFloat64("lon")
			lat, _ := cmd.Flags().GetFloat64("lat")
			zoom, _ := cmd.Flags().GetFloat64("zoom")

			layers, err := server.LoadLayers(opts.DataDir, opts.Manifest, logger)
			if err != nil {
				logger.Fatal("loading datasets", "err", err)
			}
			host, err := mapview.New(mapview.OSM, layers...)
			if err != nil {
				logger.Fatal("building map", "err", err)
			}

			f := host.ForEachFeatureAtPixel(mapview.ViewAt(orb.Point{lon, lat}, zoom), mapview.Pixel{X: 0.5, Y: 0.5})
			if f == nil {
				fmt.Fprintf(os.Stderr, "no region at %g, %g\n", lon, lat)
				os.Exit(1)
			}
			fmt.Println(highlight.RenderInfo(f))
		}),
	}
	cmd.Flags().Float64("lon", 0, "Longitude (WGS84)")
	cmd.Flags().Float64("lat", 0, "Latitude (WGS84)")
	cmd.Flags().Float64("zoom", 10, "Zoom level used for layer visibility")
	return cmd
}
