package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/cropsignal/yield-feature-service/internal/registry"
)

// scalar CSV column layout, fixed by the upstream data preparation step.
var scalarHeader = []string{"id_dist", "year", "productive", "mean_productive", "trend", "prod_disperssion_norm"}

// CSVStore serves rows from per-region CSV file pairs loaded into memory:
// "<prefix>.csv" holds the flat meteo rows and "<prefix>_scalar.csv" the
// district id, year, and yield statistics, aligned line-for-line.
type CSVStore struct {
	mu      sync.RWMutex
	dir     string
	regions map[string]*regionData
}

type regionData struct {
	prefix    string
	districts map[string]int // district name -> id
	rows      []csvRow
}

type csvRow struct {
	districtID int
	year       int
	stats      Stats
	meteo      []float64
}

// NewCSVStore loads every configured region's file pair from dir.
func NewCSVStore(dir string, regions map[string]registry.Region) (*CSVStore, error) {
	s := &CSVStore{dir: dir, regions: make(map[string]*regionData, len(regions))}

	for name, cfg := range regions {
		rd, err := loadRegion(dir, cfg)
		if err != nil {
			return nil, fmt.Errorf("load region %q: %w", name, err)
		}
		s.regions[name] = rd
	}
	return s, nil
}

func loadRegion(dir string, cfg registry.Region) (*regionData, error) {
	scalarRecs, err := readCSV(filepath.Join(dir, cfg.FilePrefix+"_scalar.csv"))
	if err != nil {
		return nil, err
	}
	meteoRecs, err := readCSV(filepath.Join(dir, cfg.FilePrefix+".csv"))
	if err != nil {
		return nil, err
	}
	if len(scalarRecs) != len(meteoRecs) {
		return nil, fmt.Errorf("scalar file has %d rows, meteo file has %d; files must align line-for-line",
			len(scalarRecs), len(meteoRecs))
	}

	rd := &regionData{
		prefix:    cfg.FilePrefix,
		districts: cfg.Districts,
		rows:      make([]csvRow, 0, len(scalarRecs)),
	}
	for i, rec := range scalarRecs {
		row, err := parseScalarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("scalar line %d: %w", i+2, err)
		}
		row.meteo, err = parseFloats(meteoRecs[i])
		if err != nil {
			return nil, fmt.Errorf("meteo line %d: %w", i+2, err)
		}
		rd.rows = append(rd.rows, row)
	}
	return rd, nil
}

// readCSV returns the data records of a headed CSV file.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return recs[1:], nil
}

func parseScalarRecord(rec []string) (csvRow, error) {
	if len(rec) < len(scalarHeader) {
		return csvRow{}, fmt.Errorf("want %d columns, got %d", len(scalarHeader), len(rec))
	}
	vals, err := parseFloats(rec)
	if err != nil {
		return csvRow{}, err
	}
	return csvRow{
		districtID: int(vals[0]),
		year:       int(vals[1]),
		stats: Stats{
			Productive:         vals[2],
			MeanProductive:     vals[3],
			Trend:              vals[4],
			ProdDispersionNorm: vals[5],
		},
	}, nil
}

func parseFloats(rec []string) ([]float64, error) {
	out := make([]float64, len(rec))
	for i, field := range rec {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *CSVStore) Regions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.regions))
	for name := range s.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *CSVStore) Districts(_ context.Context, region string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rd, ok := s.regions[region]
	if !ok {
		return nil, &NotFoundError{Region: region}
	}
	out := make([]string, 0, len(rd.districts))
	for name := range rd.districts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *CSVStore) Years(_ context.Context, region, district string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rd, id, err := s.district(region, district)
	if err != nil {
		return nil, err
	}
	var years []int
	for _, row := range rd.rows {
		if row.districtID == id {
			years = append(years, row.year)
		}
	}
	sort.Ints(years)
	return years, nil
}

func (s *CSVStore) Row(_ context.Context, region, district string, year int) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rd, id, err := s.district(region, district)
	if err != nil {
		return Row{}, err
	}
	for _, row := range rd.rows {
		if row.districtID == id && row.year == year {
			return row.asRow(), nil
		}
	}
	return Row{}, &NotFoundError{Region: region, District: district, Year: year}
}

func (s *CSVStore) DistrictRows(_ context.Context, region, district string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rd, id, err := s.district(region, district)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, row := range rd.rows {
		if row.districtID == id {
			rows = append(rows, row.asRow())
		}
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Region: region, District: district}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows, nil
}

// Append stores the measurement in memory and appends it to the region's
// CSV file pair so restarts keep ingested data.
func (s *CSVStore) Append(_ context.Context, m Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rd, ok := s.regions[m.Region]
	if !ok {
		return &NotFoundError{Region: m.Region}
	}
	id, ok := rd.districts[m.District]
	if !ok {
		return &NotFoundError{Region: m.Region, District: m.District}
	}

	scalarRec := []string{
		strconv.Itoa(id),
		strconv.Itoa(m.Year),
		formatFloat(m.Stats.Productive),
		formatFloat(m.Stats.MeanProductive),
		formatFloat(m.Stats.Trend),
		formatFloat(m.Stats.ProdDispersionNorm),
	}
	meteoRec := make([]string, len(m.Meteo))
	for i, v := range m.Meteo {
		meteoRec[i] = formatFloat(v)
	}

	// The file pair must stay aligned line-for-line or the region refuses to
	// load; if the second append fails, truncate the first back.
	scalarPath := filepath.Join(s.dir, rd.prefix+"_scalar.csv")
	info, err := os.Stat(scalarPath)
	if err != nil {
		return err
	}
	if err := appendRecord(scalarPath, scalarRec); err != nil {
		return err
	}
	if err := appendRecord(filepath.Join(s.dir, rd.prefix+".csv"), meteoRec); err != nil {
		if truncErr := os.Truncate(scalarPath, info.Size()); truncErr != nil {
			return fmt.Errorf("%w; scalar rollback failed: %v", err, truncErr)
		}
		return err
	}

	rd.rows = append(rd.rows, csvRow{
		districtID: id,
		year:       m.Year,
		stats:      m.Stats,
		meteo:      append([]float64{}, m.Meteo...),
	})
	return nil
}

func appendRecord(path string, rec []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *CSVStore) district(region, district string) (*regionData, int, error) {
	rd, ok := s.regions[region]
	if !ok {
		return nil, 0, &NotFoundError{Region: region}
	}
	id, ok := rd.districts[district]
	if !ok {
		return nil, 0, &NotFoundError{Region: region, District: district}
	}
	return rd, id, nil
}

func (r csvRow) asRow() Row {
	return Row{
		Year:  r.year,
		Meteo: append([]float64{}, r.meteo...),
		Stats: r.stats,
	}
}
