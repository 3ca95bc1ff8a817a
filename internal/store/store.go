// Package store provides lookup of per-district-year measurement rows and
// yield statistics. Two backends implement the same Store contract: an
// in-memory store loaded from region CSV file pairs (the original data
// layout) and a Postgres store.
package store

import (
	"context"
	"fmt"
)

// Stats holds the scalar yield statistics stored alongside each
// district-year measurement row.
type Stats struct {
	Productive         float64 `json:"productive" db:"productive"`
	MeanProductive     float64 `json:"mean_productive" db:"mean_productive"`
	Trend              float64 `json:"trend" db:"trend"`
	ProdDispersionNorm float64 `json:"prod_disperssion_norm" db:"prod_dispersion_norm"`
}

// Row is one measurement-year for one district: the flat concatenation of
// per-parameter daily sequences plus the year's yield statistics.
type Row struct {
	Year  int
	Meteo []float64
	Stats Stats
}

// Measurement is an ingested district-year observation.
type Measurement struct {
	Region   string
	District string
	Year     int
	Meteo    []float64
	Stats    Stats
}

// Store looks up measurement rows by region, district, and year.
type Store interface {
	// Regions returns the known region names.
	Regions(ctx context.Context) ([]string, error)

	// Districts returns the district names of a region.
	Districts(ctx context.Context, region string) ([]string, error)

	// Years returns the years with data for a district, ascending.
	Years(ctx context.Context, region, district string) ([]int, error)

	// Row returns one district-year row.
	Row(ctx context.Context, region, district string, year int) (Row, error)

	// DistrictRows returns every row of a district, sorted by year ascending.
	DistrictRows(ctx context.Context, region, district string) ([]Row, error)

	// Append stores a new measurement row.
	Append(ctx context.Context, m Measurement) error
}

// NotFoundError reports a region, district, or district-year with no data.
// Year is zero when the lookup was not year-scoped.
type NotFoundError struct {
	Region   string
	District string
	Year     int
}

func (e *NotFoundError) Error() string {
	switch {
	case e.District == "":
		return fmt.Sprintf("region %q not found", e.Region)
	case e.Year == 0:
		return fmt.Sprintf("district %q not found in region %q", e.District, e.Region)
	default:
		return fmt.Sprintf("no data for %s/%s year %d", e.Region, e.District, e.Year)
	}
}
