package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// Built-in profile names.
const (
	NameDefault    = "default"
	NameHighStakes = "highstakes"
)

// Builtins returns the built-in profiles.
func Builtins() []*Profile {
	return []*Profile{
		{
			Name:        NameDefault,
			Description: "Security is a veto pillar at 0.5; the rest must reach 0.7",
			Pillars: map[pillar.Pillar]Rule{
				pillar.Security:    {Threshold: 0.5, Veto: true},
				pillar.Fidelity:    {Threshold: 0.7},
				pillar.Ethics:      {Threshold: 0.7},
				pillar.Performance: {Threshold: 0.7},
			},
			Bands: DefaultBands(),
		},
		{
			Name:        NameHighStakes,
			Description: "Every pillar must reach 0.8; security is a veto pillar",
			Pillars: map[pillar.Pillar]Rule{
				pillar.Security:    {Threshold: 0.8, Veto: true},
				pillar.Fidelity:    {Threshold: 0.8},
				pillar.Ethics:      {Threshold: 0.8},
				pillar.Performance: {Threshold: 0.8},
			},
			Bands: DefaultBands(),
		},
	}
}

// Registry resolves profile names. Profiles loaded from a directory
// override built-ins with the same name.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: make(map[string]*Profile)}
	for _, p := range Builtins() {
		r.profiles[p.Name] = p
	}
	return r
}

// Add registers p, replacing any profile with the same name.
func (r *Registry) Add(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.profiles[p.Name] = p.Clone()
	return nil
}

// LoadDir loads all .yaml and .yml files from dir into the registry. A
// missing directory is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading profile directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		p, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		r.profiles[p.Name] = p
	}
	return nil
}

// Resolve returns a copy of the named profile. An unknown name is a
// ConfigurationError.
func (r *Registry) Resolve(name string) (*Profile, error) {
	if name == "" {
		name = NameDefault
	}
	p, ok := r.profiles[name]
	if !ok {
		return nil, evalerr.Configf("profile", "unknown profile %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
