// Package pillar defines the evaluation dimensions and the immutable,
// versioned worker results that flow from the dispatcher to the aggregator
// and verdict synthesizer.
package pillar

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Pillar identifies one evaluation dimension.
type Pillar string

const (
	Security    Pillar = "security"
	Fidelity    Pillar = "fidelity"
	Ethics      Pillar = "ethics"
	Performance Pillar = "performance"
)

// canonical is the fixed pillar order used for every deterministic walk.
var canonical = []Pillar{Security, Fidelity, Ethics, Performance}

// All returns the known pillars in canonical order.
func All() []Pillar {
	out := make([]Pillar, len(canonical))
	copy(out, canonical)
	return out
}

// Parse converts a name to a Pillar. Matching is case-insensitive.
func Parse(s string) (Pillar, error) {
	p := Pillar(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p, nil
	}
	return "", fmt.Errorf("unknown pillar %q (want one of %s)", s, strings.Join(Names(), ", "))
}

// Valid reports whether p is one of the known pillars.
func (p Pillar) Valid() bool {
	return p.Rank() >= 0
}

// Rank returns the canonical position of p, or -1 if it is unknown.
func (p Pillar) Rank() int {
	for i, c := range canonical {
		if c == p {
			return i
		}
	}
	return -1
}

// Names returns the canonical pillar names.
func Names() []string {
	out := make([]string, len(canonical))
	for i, p := range canonical {
		out[i] = string(p)
	}
	return out
}

// Sort orders pillars canonically in place. Unknown pillars sort last,
// by name.
func Sort(ps []Pillar) {
	sort.SliceStable(ps, func(i, j int) bool { return Less(ps[i], ps[j]) })
}

// Less reports whether a sorts before b in canonical order.
func Less(a, b Pillar) bool {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra >= 0 && rb >= 0:
		return ra < rb
	case ra >= 0:
		return true
	case rb >= 0:
		return false
	default:
		return a < b
	}
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp bounds a score to [0, 100].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
