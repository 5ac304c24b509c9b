// Package profile defines named evaluation profiles: per-pillar thresholds,
// the veto set, weights, the degraded-metric policy and the grade bands.
package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// DegradedPolicy decides how a pillar with a degraded metric is gated.
type DegradedPolicy string

const (
	// DegradedFail fails the pillar outright. This is the default.
	DegradedFail DegradedPolicy = "fail"
	// DegradedEvaluate compares the simulated metric to the threshold but
	// keeps the degraded flag on the verdict.
	DegradedEvaluate DegradedPolicy = "evaluate"
)

// Rule gates one pillar.
type Rule struct {
	Threshold float64        `yaml:"threshold" json:"threshold"`
	Veto      bool           `yaml:"veto" json:"veto"`
	Weight    float64        `yaml:"weight,omitempty" json:"weight,omitempty"`
	Degraded  DegradedPolicy `yaml:"degraded,omitempty" json:"degraded,omitempty"`
}

// Policy returns the degraded policy, defaulting to DegradedFail.
func (r Rule) Policy() DegradedPolicy {
	if r.Degraded == "" {
		return DegradedFail
	}
	return r.Degraded
}

// Band is a named lower bound on the composite score.
type Band struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
}

// Profile is a named threshold/weight configuration.
type Profile struct {
	Name        string                `yaml:"name" json:"name"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Pillars     map[pillar.Pillar]Rule `yaml:"pillars" json:"pillars"`
	Bands       []Band                `yaml:"bands,omitempty" json:"bands,omitempty"`
}

// DefaultBands returns the reference grade bands, highest first.
func DefaultBands() []Band {
	return []Band{
		{Name: "excellent", Min: 85},
		{Name: "good", Min: 70},
		{Name: "fair", Min: 50},
		{Name: "needs_attention", Min: 0},
	}
}

// Load reads a single profile from a YAML file and validates it.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile file %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a profile. source names the origin in errors.
func Parse(data []byte, source string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &evalerr.ConfigurationError{Field: source, Reason: "parsing profile", Err: err}
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) normalize() {
	if len(p.Bands) == 0 {
		p.Bands = DefaultBands()
	}
	sort.SliceStable(p.Bands, func(i, j int) bool { return p.Bands[i].Min > p.Bands[j].Min })
}

// Validate reports every problem with the profile as one
// ConfigurationError.
func (p *Profile) Validate() error {
	var errs []error
	field := "profile"
	if p.Name != "" {
		field = "profile " + p.Name
	}

	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(p.Pillars) == 0 {
		errs = append(errs, errors.New("at least one pillar is required"))
	}

	weighted := 0
	for _, name := range p.PillarNames() {
		r := p.Pillars[name]
		if !name.Valid() {
			errs = append(errs, fmt.Errorf("unknown pillar %q", name))
		}
		if r.Threshold < 0 || r.Threshold > 1 {
			errs = append(errs, fmt.Errorf("pillars.%s.threshold must be in [0, 1], got %v", name, r.Threshold))
		}
		if r.Weight < 0 {
			errs = append(errs, fmt.Errorf("pillars.%s.weight must be >= 0, got %v", name, r.Weight))
		}
		if r.Weight > 0 {
			weighted++
		}
		switch r.Degraded {
		case "", DegradedFail, DegradedEvaluate:
		default:
			errs = append(errs, fmt.Errorf("pillars.%s.degraded must be %q or %q, got %q", name, DegradedFail, DegradedEvaluate, r.Degraded))
		}
	}
	if weighted > 0 && weighted != len(p.Pillars) {
		errs = append(errs, fmt.Errorf("weights must be set for all pillars or none (%d of %d set)", weighted, len(p.Pillars)))
	}

	seen := make(map[string]bool)
	hasFloor := false
	for _, b := range p.Bands {
		if b.Name == "" {
			errs = append(errs, errors.New("band name is required"))
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Errorf("duplicate band %q", b.Name))
		}
		seen[b.Name] = true
		if b.Min < 0 || b.Min > 100 {
			errs = append(errs, fmt.Errorf("band %q min must be in [0, 100], got %v", b.Name, b.Min))
		}
		if b.Min == 0 {
			hasFloor = true
		}
	}
	if len(p.Bands) > 0 && !hasFloor {
		errs = append(errs, errors.New("bands must include one with min 0"))
	}

	if err := errors.Join(errs...); err != nil {
		return &evalerr.ConfigurationError{Field: field, Reason: "invalid profile", Err: err}
	}
	return nil
}

// PillarNames returns the profile's pillars in canonical order.
func (p *Profile) PillarNames() []pillar.Pillar {
	out := make([]pillar.Pillar, 0, len(p.Pillars))
	for name := range p.Pillars {
		out = append(out, name)
	}
	pillar.Sort(out)
	return out
}

// Has reports whether the profile gates pillar name.
func (p *Profile) Has(name pillar.Pillar) bool {
	_, ok := p.Pillars[name]
	return ok
}

// Weights returns the configured weights, or nil when none are set (equal
// split).
func (p *Profile) Weights() map[pillar.Pillar]float64 {
	var out map[pillar.Pillar]float64
	for name, r := range p.Pillars {
		if r.Weight > 0 {
			if out == nil {
				out = make(map[pillar.Pillar]float64, len(p.Pillars))
			}
			out[name] = r.Weight
		}
	}
	return out
}

// VetoPillars returns the veto-flagged pillars in canonical order.
func (p *Profile) VetoPillars() []pillar.Pillar {
	var out []pillar.Pillar
	for _, name := range p.PillarNames() {
		if p.Pillars[name].Veto {
			out = append(out, name)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	out := *p
	out.Pillars = make(map[pillar.Pillar]Rule, len(p.Pillars))
	for k, v := range p.Pillars {
		out.Pillars[k] = v
	}
	out.Bands = make([]Band, len(p.Bands))
	copy(out.Bands, p.Bands)
	return &out
}

// YAML encodes the profile.
func (p *Profile) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
