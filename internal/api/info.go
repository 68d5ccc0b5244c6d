package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-census/internal/mapview"
)

type InfoHandler struct {
	dataDir string
	dbOK    bool
	infoOn  string
	base    mapview.BaseLayer
}

func NewInfoHandler(dataDir string, dbOK bool, infoOn string, base mapview.BaseLayer) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, infoOn: infoOn, base: base}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name      string            `json:"name" doc:"Service name"`
	Version   string            `json:"version" doc:"Service version"`
	DataDir   string            `json:"data_dir" doc:"Data directory path"`
	DB        bool              `json:"db" doc:"Whether database is available"`
	InfoOn    string            `json:"info_on" doc:"Events that write the info line" enum:"click,hover"`
	BaseLayer mapview.BaseLayer `json:"base_layer" doc:"Base tile layer"`
	Features  []string          `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"geojson", "highlight", "mvt", "pmtiles"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "plat-census",
		Version:   Version,
		DataDir:   h.dataDir,
		DB:        h.dbOK,
		InfoOn:    h.infoOn,
		BaseLayer: h.base,
		Features:  features,
	}}, nil
}
