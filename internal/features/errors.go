package features

import "fmt"

// UnknownParameterError reports a request for a parameter the registry does
// not declare. Maps to a client error: the caller named a bad parameter.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter %q", e.Name)
}

// OutOfRangeError reports a flat row too short for the segment a parameter
// should occupy. This signals drift between the registry and stored data.
type OutOfRangeError struct {
	Param  string
	RowLen int
	Need   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("row too short for parameter %q: have %d values, need %d", e.Param, e.RowLen, e.Need)
}

// ShapeMismatchError reports a row or matrix whose dimensions disagree with
// the registry's parameter layout.
type ShapeMismatchError struct {
	Which string
	Got   int
	Want  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s has length %d, want %d", e.Which, e.Got, e.Want)
}

// EmptySeriesError reports a degenerate extraction with no values to aggregate.
type EmptySeriesError struct {
	Param string
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("parameter %q extracted an empty series", e.Param)
}

// InvalidCoefficientError reports a zero normalization coefficient, which is
// a registry misconfiguration: dividing by it would poison the whole vector.
type InvalidCoefficientError struct {
	Name string
}

func (e *InvalidCoefficientError) Error() string {
	return fmt.Sprintf("normalization coefficient for %q is zero", e.Name)
}

// CoefficientMismatchError reports a matrix whose row count disagrees with
// the registry's declared parameter count, which would silently misalign
// coefficients to rows.
type CoefficientMismatchError struct {
	Rows  int
	Coefs int
}

func (e *CoefficientMismatchError) Error() string {
	return fmt.Sprintf("matrix has %d rows but registry declares %d coefficients", e.Rows, e.Coefs)
}
