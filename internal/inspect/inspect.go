// Package inspect runs DuckDB over the local partitions of a layer for
// quick operator checks.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"b3-dataflow/internal/errors"
	"b3-dataflow/internal/model"
	"b3-dataflow/internal/partition"
)

// Summary describes the dated partitions of one layer.
type Summary struct {
	Layer     partition.Layer `json:"layer"`
	Files     int64           `json:"files"`
	Rows      int64           `json:"rows"`
	FirstDate string          `json:"first_date"`
	LastDate  string          `json:"last_date"`
	MeanClose float64         `json:"mean_close"`
}

// Service wraps an in-memory DuckDB database.
type Service struct {
	db *sql.DB
}

// New opens an in-memory DuckDB database.
func New() (*Service, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the database.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Pattern is the glob matching every dated partition of layer under dir.
func Pattern(dir string, layer partition.Layer) string {
	return filepath.Join(dir, string(layer), "year=*", "month=*", "day=*", "*."+partition.Ext)
}

// Summarize counts files and rows of a layer and reports its date range and
// mean close. A layer without partitions is ErrNoData.
func (s *Service) Summarize(ctx context.Context, dir string, layer partition.Layer) (Summary, error) {
	if !layer.Valid() {
		return Summary{}, fmt.Errorf("layer %q: %w", layer, errors.ErrInvalidPartition)
	}
	pattern := Pattern(dir, layer)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Summary{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return Summary{}, fmt.Errorf("no partitions match %s: %w", pattern, errors.ErrNoData)
	}

	query := fmt.Sprintf(`
		SELECT
			count(DISTINCT filename),
			count(*),
			min(%[1]s),
			max(%[1]s),
			avg(%[2]s)
		FROM read_parquet($1, filename = true, union_by_name = true)`,
		model.ColDate, model.ColClose)

	var (
		sum         = Summary{Layer: layer}
		first, last sql.NullString
		mean        sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx, query, pattern).Scan(&sum.Files, &sum.Rows, &first, &last, &mean)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize %s: %w", layer, err)
	}
	sum.FirstDate, sum.LastDate, sum.MeanClose = first.String, last.String, mean.Float64
	return sum, nil
}
