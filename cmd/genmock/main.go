// Command genmock generates synthetic region CSV fixtures for local
// development and tests. It uses the real registry so the generated rows
// match the configured parameter layout exactly.
//
// Usage:
//
//	go run ./cmd/genmock -config config.yaml -out-dir source -start-year 2015 -end-year 2023
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cropsignal/yield-feature-service/internal/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "registry config file")
	outDir := flag.String("out-dir", "source", "output directory for CSV fixtures")
	startYear := flag.Int("start-year", 2015, "first generated year")
	endYear := flag.Int("end-year", 2023, "last generated year")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	reg, degraded, err := registry.Load(*configPath)
	if degraded {
		return fmt.Errorf("registry unusable for generation: %w", err)
	}
	if len(reg.Params) == 0 || len(reg.Regions) == 0 {
		return fmt.Errorf("registry declares no parameters or regions; nothing to generate")
	}
	if *startYear >= *endYear {
		return fmt.Errorf("start-year must precede end-year")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	for name, region := range reg.Regions {
		if err := generateRegion(reg, region, *outDir, *startYear, *endYear, rng); err != nil {
			return fmt.Errorf("generate region %q: %w", name, err)
		}
		log.Printf("generated %s (%d districts, years %d-%d)", region.FilePrefix, len(region.Districts), *startYear, *endYear)
	}
	return nil
}

func generateRegion(reg *registry.Registry, region registry.Region, outDir string, startYear, endYear int, rng *rand.Rand) error {
	meteoF, err := os.Create(filepath.Join(outDir, region.FilePrefix+".csv"))
	if err != nil {
		return err
	}
	defer meteoF.Close()
	scalarF, err := os.Create(filepath.Join(outDir, region.FilePrefix+"_scalar.csv"))
	if err != nil {
		return err
	}
	defer scalarF.Close()

	meteoW := csv.NewWriter(meteoF)
	scalarW := csv.NewWriter(scalarF)

	if err := meteoW.Write(meteoHeader(reg)); err != nil {
		return err
	}
	if err := scalarW.Write([]string{"id_dist", "year", "productive", "mean_productive", "trend", "prod_disperssion_norm"}); err != nil {
		return err
	}

	// Stable district order so reruns with the same seed reproduce files.
	ids := make([]int, 0, len(region.Districts))
	for _, id := range region.Districts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		meanProd := 20 + rng.Float64()*15
		for year := startYear; year <= endYear; year++ {
			if err := meteoW.Write(meteoRow(reg, rng)); err != nil {
				return err
			}
			productive := meanProd * (0.8 + rng.Float64()*0.4)
			rec := []string{
				strconv.Itoa(id),
				strconv.Itoa(year),
				formatFloat(productive),
				formatFloat(meanProd),
				formatFloat(rng.Float64()*2 - 1),
				formatFloat(rng.Float64() * 0.3),
			}
			if err := scalarW.Write(rec); err != nil {
				return err
			}
		}
	}

	meteoW.Flush()
	scalarW.Flush()
	if err := meteoW.Error(); err != nil {
		return err
	}
	return scalarW.Error()
}

func meteoHeader(reg *registry.Registry) []string {
	l := reg.SequenceLength()
	header := make([]string, 0, reg.RowLength())
	for _, name := range reg.ParamNames() {
		for d := 0; d < l; d++ {
			header = append(header, fmt.Sprintf("%s_%d", name, d))
		}
	}
	return header
}

// meteoRow produces one flat row: a seasonal sinusoid per parameter with
// noise, scaled by the parameter's normalization coefficient so generated
// magnitudes resemble real ranges.
func meteoRow(reg *registry.Registry, rng *rand.Rand) []string {
	names := reg.ParamNames()
	coefs := reg.NormalizationVector(names)
	l := reg.SequenceLength()

	row := make([]string, 0, len(names)*l)
	for p := range names {
		scale := coefs[p]
		if scale == 0 {
			scale = 1
		}
		phase := rng.Float64() * 2 * math.Pi
		for d := 0; d < l; d++ {
			season := math.Sin(2*math.Pi*float64(d)/float64(l) + phase)
			v := scale * (0.5 + 0.4*season + 0.1*rng.Float64())
			row = append(row, formatFloat(v))
		}
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
