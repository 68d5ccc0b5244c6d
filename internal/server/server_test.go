package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-census/internal/geo"
	"github.com/joeblew999/plat-census/internal/highlight"
	"github.com/joeblew999/plat-census/internal/logging"
)

const counties = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"NAME": "Riverside", "STUSPS": "CA", "ALAND": 18000, "AWATER": 2000},
      "geometry": {"type": "Polygon", "coordinates": [[[-1,0],[0,0],[0,1],[-1,1],[-1,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"NAME": "Orange", "STUSPS": "CA", "ALAND": 1, "AWATER": 3},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    }
  ]
}`

func dataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	sources := filepath.Join(dir, "sources")
	require.NoError(t, os.MkdirAll(sources, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(sources, name), []byte(content), 0o644))
	}
	return dir
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir(t, map[string]string{"counties.geojson": counties})
	}
	cfg.Logger = logging.Discard()
	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// signalsAt returns the page signals for a 100x100 map centered on lon/lat,
// with the pointer in the middle.
func signalsAt(session string, lon, lat float64, dragging bool) string {
	c := project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
	b, _ := json.Marshal(map[string]any{
		"session":  session,
		"x":        50,
		"y":        50,
		"dragging": dragging,
		"zoom":     8,
		"centerx":  c.X(),
		"centery":  c.Y(),
		"width":    100,
		"height":   100,
	})
	return string(b)
}

func TestHealthAndLayers(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"layers":1`)
	assert.Contains(t, rec.Header().Values("Link"), `</api/v1/layers>; rel="layers"`)

	rec = do(srv, http.MethodGet, "/api/v1/layers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var layers []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layers))
	require.Len(t, layers, 1)
	assert.Equal(t, "counties", layers[0]["id"])
	assert.Equal(t, 2.0, layers[0]["featureCount"])

	rec = do(srv, http.MethodGet, "/api/v1/layers/counties", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Values("Link"), `</api/v1/layers/counties>; rel="self"`)

	rec = do(srv, http.MethodGet, "/api/v1/layers/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLayerFeatures(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/api/v1/layers/counties/features", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"FeatureCollection"`)
	assert.Contains(t, body, `"Riverside"`)
	assert.Contains(t, body, `"style"`)
}

func TestInfo(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true, InfoOn: highlight.InfoOnHover})

	rec := do(srv, http.MethodGet, "/api/v1/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plat-census"`)
	assert.Contains(t, rec.Body.String(), `"info_on":"hover"`)
	assert.Contains(t, rec.Body.String(), `"db":false`)
}

func TestClickRendersInfoOverSSE(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})
	sess := srv.Sessions().Open("")

	rec := do(srv, http.MethodPost, "/api/v1/map/click", signalsAt(sess.ID, -0.5, 0.5, false))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, "#info")
	assert.Contains(t, body, "Riverside (CA): 90.0% land, 10.0% water")
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, `"highlight":"counties/0"`)

	rec = do(srv, http.MethodGet, "/api/v1/map/overlay?session="+sess.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var overlay struct {
		Highlight string `json:"highlight"`
		Info      string `json:"info"`
		Overlay   struct {
			Features []json.RawMessage `json:"features"`
		} `json:"overlay"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overlay))
	assert.Equal(t, "counties/0", overlay.Highlight)
	assert.Equal(t, "Riverside (CA): 90.0% land, 10.0% water", overlay.Info)
	assert.Len(t, overlay.Overlay.Features, 1)
}

func TestPointerMoveHighlightsThenClears(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})
	sess := srv.Sessions().Open("")

	rec := do(srv, http.MethodPost, "/api/v1/map/pointermove", signalsAt(sess.ID, 0.5, 0.5, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"highlight":"counties/1"`)
	assert.NotContains(t, rec.Body.String(), "datastar-patch-elements", "click policy leaves info alone on hover")

	// dragging is ignored
	rec = do(srv, http.MethodPost, "/api/v1/map/pointermove", signalsAt(sess.ID, -0.5, 0.5, true))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"highlight"`)
	snap := srv.Sessions().Snapshot(sess)
	assert.Equal(t, "counties/1", snap.Highlight)

	// far from every region
	rec = do(srv, http.MethodPost, "/api/v1/map/pointermove", signalsAt(sess.ID, 40, 40, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"highlight":""`)
	snap = srv.Sessions().Snapshot(sess)
	assert.Empty(t, snap.Highlight)
	assert.Equal(t, highlight.Placeholder, snap.Info)
}

func TestHoverPolicyRendersInfoOnMove(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true, InfoOn: highlight.InfoOnHover})
	sess := srv.Sessions().Open("")

	rec := do(srv, http.MethodPost, "/api/v1/map/pointermove", signalsAt(sess.ID, 0.5, 0.5, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Orange (CA): 25.0% land, 75.0% water")
}

func TestMapEventRejectsBadSignals(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodPost, "/api/v1/map/click", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/api/v1/map/click", `{"session":"","x":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSessionGetsNewID(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodPost, "/api/v1/map/click", signalsAt("not-a-uuid", -0.5, 0.5, false))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "not-a-uuid")
	assert.Equal(t, 1, srv.Sessions().Len())
}

func TestOpenSession(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/api/v1/map/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session":"`)
	assert.Contains(t, rec.Body.String(), "#info")
	assert.Equal(t, 1, srv.Sessions().Len())

	rec = do(srv, http.MethodGet, "/api/v1/map/overlay?session=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVectorTiles(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/tiles/counties/0/0/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.mapbox-vector-tile", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec = do(srv, http.MethodGet, "/tiles/counties/10/0/0", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(srv, http.MethodGet, "/tiles/counties/1/5/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/tiles/nope/0/0/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPage(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="map"`)
	assert.Contains(t, rec.Body.String(), `id="info"`)

	rec = do(srv, http.MethodGet, "/elsewhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsWithoutDB(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})

	rec := do(srv, http.MethodGet, "/api/v1/layers/counties/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(srv, http.MethodGet, "/api/v1/tables", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsAndSearchWithDB(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(srv, http.MethodGet, "/api/v1/layers/counties/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2.0, stats["featureCount"])
	assert.Equal(t, 1.0, stats["states"])
	assert.Equal(t, 18001.0, stats["landArea"])

	rec = do(srv, http.MethodGet, "/api/v1/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "features")

	rec = do(srv, http.MethodGet, "/api/v1/features?name=oran", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "Orange")

	rec = do(srv, http.MethodGet, "/api/v1/features?name="+url.QueryEscape("'; DROP TABLE features; --"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	rec = do(srv, http.MethodGet, "/api/v1/features?limit=5000", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Raw SQL is not exposed.
	rec = do(srv, http.MethodPost, "/api/v1/query", `{"query":"SELECT 1"}`)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)

	rec = do(srv, http.MethodGet, "/api/v1/layers/counties/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadFailureAbortsStartup(t *testing.T) {
	dir := dataDir(t, map[string]string{
		"counties.geojson": counties,
		"broken.geojson":   `{"type": "FeatureCollection", "features": [`,
	})
	_, err := New(Config{DataDir: dir, NoDB: true, Logger: logging.Discard()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, geo.ErrMalformed))
	assert.Contains(t, err.Error(), "broken.geojson")
}

func TestManifestOrdersLayers(t *testing.T) {
	dir := dataDir(t, map[string]string{"counties.geojson": counties, "states.geojson": counties})
	manifest := filepath.Join(dir, "datasets.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(fmt.Sprintf(`datasets:
  - id: states
    name: States
    path: %s
  - id: counties
    name: Counties
    path: sources/counties.geojson
    minZoom: 6
`, filepath.Join(dir, "sources", "states.geojson"))), 0o644))

	srv := newTestServer(t, Config{DataDir: dir, Manifest: manifest, NoDB: true})
	layers := srv.Host().Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, "states", layers[0].ID)
	assert.Equal(t, "Counties", layers[1].Title)
	assert.False(t, layers[1].Visible(5))

	rec := do(srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `vector\("/api/v1/layers/counties/features",\s*6\s*,\s*null\s*\)`, rec.Body.String())
	assert.Regexp(t, `vector\("/api/v1/layers/states/features",\s*null\s*,\s*null\s*\)`, rec.Body.String())
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t, Config{NoDB: true})
	doc := srv.OpenAPI()
	require.NotNil(t, doc)
	assert.Contains(t, doc.Paths, "/api/v1/map/click")
	assert.Contains(t, doc.Paths, "/tiles/{layer}/{z}/{x}/{y}")
}
