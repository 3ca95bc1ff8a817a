package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cropsignal/yield-feature-service/internal/store"
)

// StorageClient calls the row-lookup service.
type StorageClient struct {
	caller
}

// NewStorageClient creates a storage client with the given per-call timeout.
func NewStorageClient(baseURL string, timeout time.Duration) *StorageClient {
	return &StorageClient{caller: newCaller(baseURL, "storage", timeout)}
}

// YearRow is one district-year as returned by the all-years lookup.
type YearRow struct {
	Year       int       `json:"year"`
	Productive float64   `json:"productive"`
	Meteo      []float64 `json:"meteo_data"`
}

// WithYield bundles the current and previous year rows with the yield
// statistics needed for prediction-feature assembly.
type WithYield struct {
	Meteo     []float64 `json:"meteo_data"`
	MeteoPrev []float64 `json:"meteo_data_prev"`
	Stats     store.Stats
}

// MultiYear is an all-or-nothing consecutive-year history.
type MultiYear struct {
	Years  []int       `json:"years"`
	Meteo  [][]float64 `json:"meteo_rows"`
	Yields []float64   `json:"yields"`
}

// Row fetches one district-year's flat meteo row.
func (c *StorageClient) Row(ctx context.Context, region, district string, year int) ([]float64, error) {
	var body struct {
		Data []float64 `json:"data"`
	}
	err := c.getJSON(ctx, "/meteo/row", districtQuery(region, district, year), &body)
	if err != nil {
		return nil, err
	}
	return body.Data, nil
}

// AllYears fetches every row of a district, sorted by year ascending.
func (c *StorageClient) AllYears(ctx context.Context, region, district string) ([]YearRow, error) {
	var body struct {
		Rows []YearRow `json:"rows"`
	}
	err := c.getJSON(ctx, "/meteo/all_years", districtQuery(region, district, 0), &body)
	if err != nil {
		return nil, err
	}
	return body.Rows, nil
}

// WithYield fetches the two-year row pair and yield statistics for a year.
func (c *StorageClient) WithYield(ctx context.Context, region, district string, year int) (*WithYield, error) {
	var body struct {
		Meteo              []float64 `json:"meteo_data"`
		MeteoPrev          []float64 `json:"meteo_data_prev"`
		Productive         float64   `json:"productive"`
		MeanProductive     float64   `json:"mean_productive"`
		Trend              float64   `json:"trend"`
		ProdDispersionNorm float64   `json:"prod_disperssion_norm"`
	}
	err := c.getJSON(ctx, "/meteo/with_yield", districtQuery(region, district, year), &body)
	if err != nil {
		return nil, err
	}
	return &WithYield{
		Meteo:     body.Meteo,
		MeteoPrev: body.MeteoPrev,
		Stats: store.Stats{
			Productive:         body.Productive,
			MeanProductive:     body.MeanProductive,
			Trend:              body.Trend,
			ProdDispersionNorm: body.ProdDispersionNorm,
		},
	}, nil
}

// MultiYear fetches the target year plus history preceding years;
// storage rejects the request with not-found when any year is missing.
func (c *StorageClient) MultiYear(ctx context.Context, region, district string, year, history int) (*MultiYear, error) {
	q := districtQuery(region, district, year)
	q.Set("history", strconv.Itoa(history))

	var body MultiYear
	if err := c.getJSON(ctx, "/meteo/multi_year", q, &body); err != nil {
		return nil, err
	}
	// The three arrays are indexed together downstream; a payload where they
	// disagree is malformed, not usable.
	if len(body.Meteo) != len(body.Years) || len(body.Yields) != len(body.Years) {
		return nil, &DependencyUnavailableError{
			Dep: c.dep,
			Err: fmt.Errorf("multi_year arrays disagree: %d years, %d meteo rows, %d yields",
				len(body.Years), len(body.Meteo), len(body.Yields)),
		}
	}
	return &body, nil
}

// Health probes storage, degrading to "unavailable".
func (c *StorageClient) Health(ctx context.Context) string {
	return c.health(ctx)
}

func districtQuery(region, district string, year int) url.Values {
	q := url.Values{}
	q.Set("region", region)
	q.Set("district", district)
	if year != 0 {
		q.Set("year", strconv.Itoa(year))
	}
	return q
}
