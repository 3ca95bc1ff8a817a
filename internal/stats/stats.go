// Package stats holds the small regression and correlation routines shared
// by the model service and the webmaster scenarios.
package stats

import (
	"errors"
	"math"
)

// Line is a fitted y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// Predict evaluates the line at x.
func (l Line) Predict(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// FitLine fits a least-squares line through the points. Needs at least two
// points and non-zero variance in x.
func FitLine(xs, ys []float64) (Line, error) {
	if len(xs) != len(ys) {
		return Line{}, errors.New("x and y lengths differ")
	}
	if len(xs) < 2 {
		return Line{}, errors.New("need at least 2 points to fit a line")
	}

	meanX := mean(xs)
	meanY := mean(ys)

	var cov, varX float64
	for i := range xs {
		dx := xs[i] - meanX
		cov += dx * (ys[i] - meanY)
		varX += dx * dx
	}
	if varX == 0 {
		return Line{}, errors.New("x values are constant")
	}

	slope := cov / varX
	return Line{Slope: slope, Intercept: meanY - slope*meanX}, nil
}

// Pearson returns the correlation coefficient of the points, or 0 when either
// series has no variance.
func Pearson(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}

	meanX := mean(xs)
	meanY := mean(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
