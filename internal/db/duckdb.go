// Package db indexes loaded feature attributes in DuckDB for attribute
// search and per-layer statistics.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-census/internal/layer"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir string
	DBName  string
}

// dsnOptions are applied to every connection. The store only ever reads
// its own tables, so file and network readers stay off.
const dsnOptions = "?enable_external_access=false"

// Open opens the DuckDB database at <DataDir>/duckdb/<DBName>.duckdb.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.DataDir == "" {
		return sql.Open("duckdb", dsnOptions)
	}

	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}
	conn, err := sql.Open("duckdb", filepath.Join(duckdbDir, cfg.DBName+".duckdb")+dsnOptions)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

const schema = `
CREATE OR REPLACE TABLE features (
	layer  VARCHAR NOT NULL,
	id     VARCHAR NOT NULL,
	name   VARCHAR NOT NULL,
	stusps VARCHAR,
	aland  DOUBLE NOT NULL,
	awater DOUBLE NOT NULL
)`

// IndexFeatures replaces the features table with the attributes of layers.
func IndexFeatures(ctx context.Context, db *sql.DB, layers []*layer.Layer) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("creating features table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO features VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	n := 0
	for _, l := range layers {
		for _, f := range l.Features {
			var stusps any
			if f.HasStusps() {
				stusps = f.STUSPS
			}
			if _, err := stmt.ExecContext(ctx, l.ID, f.ID, f.Name, stusps, f.ALand, f.AWater); err != nil {
				return 0, fmt.Errorf("indexing %s: %w", f.ID, err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats aggregates one layer's areas.
type Stats struct {
	Layer        string  `json:"layer" doc:"Layer ID"`
	FeatureCount int     `json:"featureCount" doc:"Number of features"`
	States       int     `json:"states" doc:"Distinct state abbreviations"`
	LandArea     float64 `json:"landArea" doc:"Total ALAND in square meters"`
	WaterArea    float64 `json:"waterArea" doc:"Total AWATER in square meters"`
}

// LayerStats returns aggregate areas for a layer.
func LayerStats(ctx context.Context, db *sql.DB, layerID string) (Stats, error) {
	s := Stats{Layer: layerID}
	row := db.QueryRowContext(ctx, `
		SELECT count(*), count(DISTINCT stusps), coalesce(sum(aland), 0), coalesce(sum(awater), 0)
		FROM features WHERE layer = ?`, layerID)
	if err := row.Scan(&s.FeatureCount, &s.States, &s.LandArea, &s.WaterArea); err != nil {
		return Stats{}, fmt.Errorf("layer stats %s: %w", layerID, err)
	}
	return s, nil
}

// Filter selects rows of the features table. Empty fields match anything.
type Filter struct {
	Layer  string
	Name   string // case-insensitive substring
	Stusps string
	Limit  int
}

// Row is one indexed feature.
type Row struct {
	Layer  string  `json:"layer" doc:"Layer ID" example:"counties"`
	ID     string  `json:"id" doc:"Feature ID" example:"counties/0"`
	Name   string  `json:"name" doc:"NAME attribute" example:"Riverside"`
	Stusps string  `json:"stusps,omitempty" doc:"State abbreviation" example:"CA"`
	ALand  float64 `json:"aland" doc:"Land area in square meters"`
	AWater float64 `json:"awater" doc:"Water area in square meters"`
}

// MaxLimit caps Search results.
const MaxLimit = 1000

// Search returns indexed features matching f, ordered by layer then name.
func Search(ctx context.Context, db *sql.DB, f Filter) ([]Row, error) {
	if f.Limit <= 0 || f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT layer, id, name, coalesce(stusps, ''), aland, awater
		FROM features
		WHERE (? = '' OR layer = ?)
		  AND (? = '' OR contains(lower(name), lower(?)))
		  AND (? = '' OR stusps = upper(?))
		ORDER BY layer, name, id
		LIMIT ?`,
		f.Layer, f.Layer, f.Name, f.Name, f.Stusps, f.Stusps, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("searching features: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Layer, &r.ID, &r.Name, &r.Stusps, &r.ALand, &r.AWater); err != nil {
			return nil, fmt.Errorf("searching features: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
