package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

func TestBuiltinsValid(t *testing.T) {
	for _, p := range Builtins() {
		if err := p.Validate(); err != nil {
			t.Errorf("builtin %s invalid: %v", p.Name, err)
		}
	}
}

func TestResolve(t *testing.T) {
	r := NewRegistry()

	p, err := r.Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") error: %v", err)
	}
	if p.Name != NameDefault {
		t.Errorf("empty name resolved to %q", p.Name)
	}
	if v := p.VetoPillars(); len(v) != 1 || v[0] != pillar.Security {
		t.Errorf("VetoPillars = %v", v)
	}
	if p.Pillars[pillar.Security].Threshold != 0.5 {
		t.Errorf("default security threshold = %v", p.Pillars[pillar.Security].Threshold)
	}

	hs, err := r.Resolve(NameHighStakes)
	if err != nil {
		t.Fatal(err)
	}
	if hs.Pillars[pillar.Security].Threshold != 0.8 {
		t.Errorf("highstakes security threshold = %v", hs.Pillars[pillar.Security].Threshold)
	}

	_, err = r.Resolve("nope")
	if !evalerr.IsConfiguration(err) {
		t.Fatalf("unknown profile err = %v, want ConfigurationError", err)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Resolve(NameDefault)
	p.Pillars[pillar.Security] = Rule{Threshold: 0}

	again, _ := r.Resolve(NameDefault)
	if again.Pillars[pillar.Security].Threshold != 0.5 {
		t.Error("mutating a resolved profile changed the registry")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`name: strict
description: weighted
pillars:
  security: {threshold: 0.9, veto: true, weight: 40}
  fidelity: {threshold: 0.6, weight: 30}
  performance: {threshold: 0.5, weight: 30, degraded: evaluate}
bands:
  - {name: low, min: 0}
  - {name: high, min: 80}
`)
	p, err := Parse(data, "strict.yaml")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if p.Bands[0].Name != "high" {
		t.Errorf("bands not sorted highest first: %+v", p.Bands)
	}
	if w := p.Weights(); w[pillar.Security] != 40 || len(w) != 3 {
		t.Errorf("Weights() = %v", w)
	}
	if p.Pillars[pillar.Performance].Policy() != DegradedEvaluate {
		t.Errorf("performance policy = %q", p.Pillars[pillar.Performance].Policy())
	}
	if p.Pillars[pillar.Fidelity].Policy() != DegradedFail {
		t.Errorf("fidelity policy = %q, want default fail", p.Pillars[pillar.Fidelity].Policy())
	}
	names := p.PillarNames()
	if len(names) != 3 || names[0] != pillar.Security || names[2] != pillar.Performance {
		t.Errorf("PillarNames() = %v", names)
	}
}

func TestParse_Defaults(t *testing.T) {
	p, err := Parse([]byte("name: x\npillars:\n  ethics: {threshold: 0.4}\n"), "x.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Bands) != 4 || p.Weights() != nil {
		t.Errorf("defaults not applied: bands=%v weights=%v", p.Bands, p.Weights())
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "pillars:\n  security: {threshold: 0.5}\n", "name is required"},
		{"no pillars", "name: x\n", "at least one pillar"},
		{"unknown pillar", "name: x\npillars:\n  speed: {threshold: 0.5}\n", `unknown pillar "speed"`},
		{"threshold range", "name: x\npillars:\n  security: {threshold: 1.5}\n", "threshold must be in [0, 1]"},
		{"negative weight", "name: x\npillars:\n  security: {threshold: 0.5, weight: -1}\n", "weight must be >= 0"},
		{"partial weights", "name: x\npillars:\n  security: {threshold: 0.5, weight: 50}\n  ethics: {threshold: 0.5}\n", "all pillars or none"},
		{"bad policy", "name: x\npillars:\n  security: {threshold: 0.5, degraded: ignore}\n", "degraded must be"},
		{"no floor band", "name: x\npillars:\n  security: {threshold: 0.5}\nbands:\n  - {name: a, min: 10}\n", "min 0"},
		{"duplicate band", "name: x\npillars:\n  security: {threshold: 0.5}\nbands:\n  - {name: a, min: 10}\n  - {name: a, min: 0}\n", "duplicate band"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !evalerr.IsConfiguration(err) {
				t.Errorf("err = %T, want ConfigurationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want substring %q", err.Error(), tt.want)
			}
		})
	}
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	override := "name: default\npillars:\n  security: {threshold: 0.95, veto: true}\n"
	custom := "name: docs-only\npillars:\n  ethics: {threshold: 0.6}\n"
	if err := os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs.yml"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if err := r.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir() error: %v", err)
	}
	if got := strings.Join(r.Names(), ","); got != "default,docs-only,highstakes" {
		t.Errorf("Names() = %s", got)
	}
	p, _ := r.Resolve(NameDefault)
	if p.Pillars[pillar.Security].Threshold != 0.95 {
		t.Errorf("directory profile did not override builtin")
	}

	if err := NewRegistry().LoadDir(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("missing directory should be ignored: %v", err)
	}
}
