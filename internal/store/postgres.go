package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS district_years (
	region               TEXT             NOT NULL,
	district             TEXT             NOT NULL,
	year                 INT              NOT NULL,
	productive           DOUBLE PRECISION NOT NULL,
	mean_productive      DOUBLE PRECISION NOT NULL,
	trend                DOUBLE PRECISION NOT NULL,
	prod_dispersion_norm DOUBLE PRECISION NOT NULL,
	meteo                DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (region, district, year)
)`

// PostgresStore implements Store on a Postgres table, one row per
// district-year with the flat meteo sequence as a float8 array.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

type pgRow struct {
	Year  int             `db:"year"`
	Meteo pq.Float64Array `db:"meteo"`
	Stats
}

func (s *PostgresStore) Regions(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT region FROM district_years ORDER BY region`)
	return out, err
}

func (s *PostgresStore) Districts(ctx context.Context, region string) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT district FROM district_years WHERE region = $1 ORDER BY district`, region)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Region: region}
	}
	return out, nil
}

func (s *PostgresStore) Years(ctx context.Context, region, district string) ([]int, error) {
	var out []int
	err := s.db.SelectContext(ctx, &out,
		`SELECT year FROM district_years WHERE region = $1 AND district = $2 ORDER BY year`, region, district)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &NotFoundError{Region: region, District: district}
	}
	return out, nil
}

func (s *PostgresStore) Row(ctx context.Context, region, district string, year int) (Row, error) {
	var r pgRow
	err := s.db.GetContext(ctx, &r,
		`SELECT year, productive, mean_productive, trend, prod_dispersion_norm, meteo
		 FROM district_years WHERE region = $1 AND district = $2 AND year = $3`,
		region, district, year)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, &NotFoundError{Region: region, District: district, Year: year}
	}
	if err != nil {
		return Row{}, err
	}
	return r.asRow(), nil
}

func (s *PostgresStore) DistrictRows(ctx context.Context, region, district string) ([]Row, error) {
	var rows []pgRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT year, productive, mean_productive, trend, prod_dispersion_norm, meteo
		 FROM district_years WHERE region = $1 AND district = $2 ORDER BY year`,
		region, district)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Region: region, District: district}
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.asRow()
	}
	return out, nil
}

func (s *PostgresStore) Append(ctx context.Context, m Measurement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO district_years
		 (region, district, year, productive, mean_productive, trend, prod_dispersion_norm, meteo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (region, district, year) DO NOTHING`,
		m.Region, m.District, m.Year,
		m.Stats.Productive, m.Stats.MeanProductive, m.Stats.Trend, m.Stats.ProdDispersionNorm,
		pq.Float64Array(m.Meteo))
	return err
}

func (r pgRow) asRow() Row {
	return Row{Year: r.Year, Meteo: []float64(r.Meteo), Stats: r.Stats}
}
