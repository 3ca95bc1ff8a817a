// Package registry holds the parameter registry: the ordered lists of
// time-varying and scalar parameters, their normalization coefficients, the
// per-parameter sequence length, and the day window retained for model input.
//
// Parameter order is load-bearing. The position of a name in Params determines
// which segment of a flat storage row belongs to it and which row of the
// feature matrix it occupies, so the registry is loaded once at startup and
// passed into every component as an immutable value.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSequenceLength is the number of days each time-varying
	// parameter occupies in a flat row when the config does not say otherwise.
	DefaultSequenceLength = 365

	// DefaultWindowStart and DefaultWindowEnd bound the day window cut from
	// the merged two-year matrix: late autumn sowing through harvest.
	DefaultWindowStart = 275
	DefaultWindowEnd   = 520
)

// Parameter declares one registered parameter. A nil Coef means "no
// normalization", i.e. divide by 1. An explicit zero is kept as-is and
// rejected later as an invalid coefficient.
type Parameter struct {
	Name string   `yaml:"name" json:"name"`
	Coef *float64 `yaml:"coef,omitempty" json:"coef,omitempty"`
}

// Region maps a region name to its storage file prefix and known districts.
type Region struct {
	FilePrefix string         `yaml:"prefix" json:"prefix"`
	Districts  map[string]int `yaml:"districts" json:"districts"`
}

// Registry is the immutable process-wide parameter configuration.
type Registry struct {
	Params      []Parameter
	StatParams  []Parameter
	SeqLen      int
	WindowStart int
	WindowEnd   int
	Regions     map[string]Region
}

// fileFormat is the on-disk shape of the registry config (YAML or JSON).
type fileFormat struct {
	Params         []Parameter       `yaml:"params" json:"params"`
	StatParams     []Parameter       `yaml:"stat_params" json:"stat_params"`
	SequenceLength int               `yaml:"sequence_length" json:"sequence_length"`
	Window         *windowFormat     `yaml:"window" json:"window"`
	Regions        map[string]Region `yaml:"regions" json:"regions"`
}

type windowFormat struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// Default returns the built-in registry: default lengths and window, no
// parameters known. Services running on it can answer health checks but will
// reject any request naming a parameter.
func Default() *Registry {
	return &Registry{
		SeqLen:      DefaultSequenceLength,
		WindowStart: DefaultWindowStart,
		WindowEnd:   DefaultWindowEnd,
		Regions:     map[string]Region{},
	}
}

// Load reads the registry from a YAML or JSON file (chosen by extension).
//
// The registry is always usable: if the file is missing, unreadable, or fails
// validation, Load returns the built-in defaults with degraded=true and the
// reason in err. Callers log the reason and continue; a degraded registry is
// an operational condition, not a startup failure.
func Load(path string) (reg *Registry, degraded bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Default(), true, fmt.Errorf("read registry config: %w", err)
	}

	var ff fileFormat
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &ff)
	default:
		err = json.Unmarshal(raw, &ff)
	}
	if err != nil {
		return Default(), true, fmt.Errorf("parse registry config: %w", err)
	}

	reg = &Registry{
		Params:      ff.Params,
		StatParams:  ff.StatParams,
		SeqLen:      ff.SequenceLength,
		WindowStart: DefaultWindowStart,
		WindowEnd:   DefaultWindowEnd,
		Regions:     ff.Regions,
	}
	if reg.SeqLen == 0 {
		reg.SeqLen = DefaultSequenceLength
	}
	if ff.Window != nil {
		reg.WindowStart = ff.Window.Start
		reg.WindowEnd = ff.Window.End
	}
	if reg.Regions == nil {
		reg.Regions = map[string]Region{}
	}

	if err := reg.validate(); err != nil {
		return Default(), true, fmt.Errorf("invalid registry config: %w", err)
	}
	return reg, false, nil
}

func (r *Registry) validate() error {
	if r.SeqLen <= 0 {
		return fmt.Errorf("sequence_length must be positive, got %d", r.SeqLen)
	}
	if r.WindowStart < 0 || r.WindowStart >= r.WindowEnd {
		return fmt.Errorf("window must satisfy 0 <= start < end, got (%d, %d)", r.WindowStart, r.WindowEnd)
	}
	if name, ok := firstDuplicate(r.Params); ok {
		return fmt.Errorf("duplicate parameter %q", name)
	}
	if name, ok := firstDuplicate(r.StatParams); ok {
		return fmt.Errorf("duplicate stat parameter %q", name)
	}

	// A name in both lists would make the coefficient lookup ambiguous.
	seen := make(map[string]struct{}, len(r.Params))
	for _, p := range r.Params {
		seen[p.Name] = struct{}{}
	}
	for _, p := range r.StatParams {
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("parameter %q declared as both time-varying and stat", p.Name)
		}
	}
	return nil
}

func firstDuplicate(params []Parameter) (string, bool) {
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if _, ok := seen[p.Name]; ok {
			return p.Name, true
		}
		seen[p.Name] = struct{}{}
	}
	return "", false
}

// ParamNames returns the ordered time-varying parameter names.
func (r *Registry) ParamNames() []string {
	return names(r.Params)
}

// StatParamNames returns the ordered scalar stat parameter names.
func (r *Registry) StatParamNames() []string {
	return names(r.StatParams)
}

func names(params []Parameter) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}

// ParamIndex returns the position of a time-varying parameter, or -1 when the
// name is not registered.
func (r *Registry) ParamIndex(name string) int {
	for i, p := range r.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// NormalizationVector returns one coefficient per name, in the given order.
// Names without a declared coefficient normalize by 1.
func (r *Registry) NormalizationVector(requested []string) []float64 {
	coefs := make(map[string]*float64, len(r.Params)+len(r.StatParams))
	for _, p := range r.Params {
		coefs[p.Name] = p.Coef
	}
	for _, p := range r.StatParams {
		coefs[p.Name] = p.Coef
	}

	out := make([]float64, len(requested))
	for i, name := range requested {
		if c := coefs[name]; c != nil {
			out[i] = *c
		} else {
			out[i] = 1
		}
	}
	return out
}

// SequenceLength returns the number of days one parameter occupies in a flat row.
func (r *Registry) SequenceLength() int { return r.SeqLen }

// Window returns the [start, end) day range retained after normalization.
func (r *Registry) Window() (start, end int) { return r.WindowStart, r.WindowEnd }

// RowLength returns the expected flat-row length for the configured parameter set.
func (r *Registry) RowLength() int { return len(r.Params) * r.SeqLen }
