// Package features implements the feature-assembly pipeline: the array
// transforms that turn flat per-district-year measurement rows into plottable
// single-parameter series, NDVI/yield samples, and the normalized, windowed,
// flattened tensor the prediction model consumes.
//
// Every transform is a pure function over its inputs plus the immutable
// registry, so concurrent requests need no locking.
package features

import "github.com/cropsignal/yield-feature-service/internal/registry"

// NDVIParam is the vegetation-index parameter whose yearly maximum is used as
// a yield predictor.
const NDVIParam = "ndvi"

// Matrix is a parameters-as-rows, days-as-columns feature matrix.
type Matrix [][]float64

// Rows returns the number of parameter rows.
func (m Matrix) Rows() int { return len(m) }

// Days returns the number of day columns, 0 for an empty matrix.
func (m Matrix) Days() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Assembler runs the pipeline against one registry. It holds no other state
// and is safe for concurrent use.
type Assembler struct {
	reg *registry.Registry
}

// NewAssembler creates an Assembler bound to reg.
func NewAssembler(reg *registry.Registry) *Assembler {
	return &Assembler{reg: reg}
}

// Extract returns the contiguous sub-sequence of row belonging to param.
//
// Rows carry no parameter names; the segment [i*L, (i+1)*L) belongs to the
// i-th registered parameter by positional contract. A row shorter than the
// segment end means the stored data does not match the configured layout.
func (a *Assembler) Extract(row []float64, param string) ([]float64, error) {
	idx := a.reg.ParamIndex(param)
	if idx < 0 {
		return nil, &UnknownParameterError{Name: param}
	}

	l := a.reg.SequenceLength()
	start, end := idx*l, (idx+1)*l
	if len(row) < end {
		return nil, &OutOfRangeError{Param: param, RowLen: len(row), Need: end}
	}
	return row[start:end], nil
}

// NDVIMax returns the maximum of the row's NDVI segment.
func (a *Assembler) NDVIMax(row []float64) (float64, error) {
	series, err := a.Extract(row, NDVIParam)
	if err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, &EmptySeriesError{Param: NDVIParam}
	}

	max := series[0]
	for _, v := range series[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

// MergeTwoYears reshapes the previous and current year rows into
// [params × days] matrices and concatenates them along the day axis.
// The previous year occupies days [0, L), the current year [L, 2L).
func (a *Assembler) MergeTwoYears(prev, curr []float64) (Matrix, error) {
	want := a.reg.RowLength()
	if len(prev) != want {
		return nil, &ShapeMismatchError{Which: "previous year row", Got: len(prev), Want: want}
	}
	if len(curr) != want {
		return nil, &ShapeMismatchError{Which: "current year row", Got: len(curr), Want: want}
	}

	l := a.reg.SequenceLength()
	merged := make(Matrix, len(a.reg.Params))
	for i := range merged {
		row := make([]float64, 0, 2*l)
		row = append(row, prev[i*l:(i+1)*l]...)
		row = append(row, curr[i*l:(i+1)*l]...)
		merged[i] = row
	}
	return merged, nil
}

// AddStatParams appends one constant-valued row per registered stat parameter
// present in stats, in registry order, broadcast across all day columns.
// Registered stats absent from the mapping contribute no row; with no matches
// the matrix is returned unchanged.
func (a *Assembler) AddStatParams(m Matrix, stats map[string]float64) Matrix {
	days := m.Days()

	var statRows Matrix
	for _, name := range a.reg.StatParamNames() {
		value, ok := stats[name]
		if !ok {
			continue
		}
		row := make([]float64, days)
		for d := range row {
			row[d] = value
		}
		statRows = append(statRows, row)
	}

	if len(statRows) == 0 {
		return m
	}
	return append(append(Matrix{}, m...), statRows...)
}

// NormalizeAndWindow divides each matrix row by its registry coefficient,
// keeps only the [start, end) day window, and flattens row-major into the
// flat sequence handed to the model service.
//
// The coefficient vector covers every registered parameter and stat, so the
// matrix row count must match exactly; anything else would silently divide
// rows by the wrong coefficients.
func (a *Assembler) NormalizeAndWindow(m Matrix) ([]float64, error) {
	paramNames := a.reg.ParamNames()
	statNames := a.reg.StatParamNames()
	allNames := append(append([]string{}, paramNames...), statNames...)

	if m.Rows() != len(allNames) {
		return nil, &CoefficientMismatchError{Rows: m.Rows(), Coefs: len(allNames)}
	}

	coefs := a.reg.NormalizationVector(allNames)
	for i, c := range coefs {
		if c == 0 {
			return nil, &InvalidCoefficientError{Name: allNames[i]}
		}
	}

	start, end := a.reg.Window()
	if m.Days() < end {
		return nil, &ShapeMismatchError{Which: "matrix day axis", Got: m.Days(), Want: end}
	}

	window := end - start
	out := make([]float64, 0, m.Rows()*window)
	for i, row := range m {
		for _, v := range row[start:end] {
			out = append(out, v/coefs[i])
		}
	}
	return out, nil
}

// WindowLength returns the number of day columns the window retains, which
// downstream consumers use to recover [rows × window] shape from flat output.
func (a *Assembler) WindowLength() int {
	start, end := a.reg.Window()
	return end - start
}
