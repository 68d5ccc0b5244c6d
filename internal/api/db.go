package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-census/internal/db"
)

// DBHandler handles database-related endpoints.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(conn *sql.DB) *DBHandler {
	return &DBHandler{db: conn}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Get(api, "/api/v1/features", h.SearchFeatures, huma.OperationTags("db"))
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	out := &TablesOutput{}
	out.Body.Tables = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			out.Body.Tables = append(out.Body.Tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	return out, nil
}

// SearchInput filters indexed features. Every filter is optional.
type SearchInput struct {
	Layer  string `query:"layer" doc:"Layer ID" example:"counties"`
	Name   string `query:"name" maxLength:"100" doc:"Case-insensitive substring of NAME" example:"river"`
	Stusps string `query:"stusps" maxLength:"2" doc:"State abbreviation" example:"CA"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Maximum rows returned"`
}

// SearchOutput is the response for feature search.
type SearchOutput struct {
	Body struct {
		Features []db.Row `json:"features" doc:"Matching features"`
		Count    int      `json:"count" doc:"Number of rows returned"`
	}
}

// SearchFeatures runs a parameterized attribute search over the features
// table.
func (h *DBHandler) SearchFeatures(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := db.Search(ctx, h.db, db.Filter{
		Layer:  input.Layer,
		Name:   input.Name,
		Stusps: input.Stusps,
		Limit:  input.Limit,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to search features", err)
	}

	out := &SearchOutput{}
	out.Body.Features = rows
	out.Body.Count = len(rows)
	return out, nil
}
