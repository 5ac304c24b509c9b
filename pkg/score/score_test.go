package score

import (
	"math/rand"
	"testing"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
)

func result(p pillar.Pillar, worker string, score float64) pillar.WorkerResult {
	return pillar.WorkerResult{Worker: worker, Pillar: p, Version: 1, BaseScore: score, Score: score, Status: pillar.StatusDone}
}

func scenario() []pillar.WorkerResult {
	return []pillar.WorkerResult{
		result(pillar.Security, "security", 60),
		result(pillar.Fidelity, "quality", 21.64),
		result(pillar.Ethics, "documentation", 95),
	}
}

func TestAggregate_EqualWeights(t *testing.T) {
	sum, err := Aggregate(scenario(), nil, profile.DefaultBands())
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	// (60 + 21.64 + 95) / 3 = 58.88
	if sum.OverallScore != 58.88 {
		t.Errorf("OverallScore = %v, want 58.88", sum.OverallScore)
	}
	if sum.Grade != "fair" {
		t.Errorf("Grade = %q, want fair", sum.Grade)
	}
	if len(sum.Contributions) != 3 {
		t.Fatalf("Contributions = %d", len(sum.Contributions))
	}
	if c, ok := sum.Contribution(pillar.Fidelity); !ok || c.Weight != 33.33 || c.Worker != "quality" {
		t.Errorf("fidelity contribution = %+v", c)
	}
}

func TestAggregate_RenormalizesWeights(t *testing.T) {
	results := []pillar.WorkerResult{
		result(pillar.Security, "security", 100),
		result(pillar.Fidelity, "quality", 50),
	}
	// Performance is absent; security and fidelity are renormalized to 75/25.
	weights := map[pillar.Pillar]float64{
		pillar.Security:    30,
		pillar.Fidelity:    10,
		pillar.Performance: 60,
	}
	sum, err := Aggregate(results, weights, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.OverallScore != 87.5 {
		t.Errorf("OverallScore = %v, want 87.5", sum.OverallScore)
	}
	if sum.Grade != "excellent" {
		t.Errorf("Grade = %q", sum.Grade)
	}
	c, _ := sum.Contribution(pillar.Security)
	if c.Weight != 75 || c.Points != 75 {
		t.Errorf("security contribution = %+v", c)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	base := []pillar.WorkerResult{
		result(pillar.Security, "security", 60),
		result(pillar.Fidelity, "quality", 21.64),
		result(pillar.Ethics, "documentation", 95),
		result(pillar.Performance, "performance", 33.33),
	}
	weights := map[pillar.Pillar]float64{
		pillar.Security: 17, pillar.Fidelity: 23, pillar.Ethics: 31, pillar.Performance: 29,
	}
	want, err := Aggregate(base, weights, nil)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := make([]pillar.WorkerResult, len(base))
		copy(perm, base)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		got, err := Aggregate(perm, weights, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.OverallScore != want.OverallScore {
			t.Fatalf("permutation %d: score %v, want %v", i, got.OverallScore, want.OverallScore)
		}
		for j := range want.Contributions {
			if got.Contributions[j] != want.Contributions[j] {
				t.Fatalf("permutation %d: contribution %d = %+v, want %+v", i, j, got.Contributions[j], want.Contributions[j])
			}
		}
	}
}

func TestAggregate_Duplicate(t *testing.T) {
	results := append(scenario(), result(pillar.Security, "security-2", 10))
	if _, err := Aggregate(results, nil, nil); err == nil {
		t.Fatal("expected error for duplicate pillar")
	}
}

func TestAggregate_Empty(t *testing.T) {
	sum, err := Aggregate(nil, nil, profile.DefaultBands())
	if err != nil {
		t.Fatal(err)
	}
	if sum.OverallScore != 0 || sum.Grade != "needs_attention" {
		t.Errorf("empty = %+v", sum)
	}
}

func TestGrade(t *testing.T) {
	bands := profile.DefaultBands()
	tests := []struct {
		score float64
		want  string
	}{
		{100, "excellent"},
		{85, "excellent"},
		{84.99, "good"},
		{70, "good"},
		{50, "fair"},
		{49.99, "needs_attention"},
		{0, "needs_attention"},
	}
	for _, tt := range tests {
		if got := Grade(tt.score, bands); got != tt.want {
			t.Errorf("Grade(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}

	custom := []profile.Band{{Name: "ok", Min: 0}, {Name: "great", Min: 95}}
	if got := Grade(96, custom); got != "great" {
		t.Errorf("custom Grade(96) = %q", got)
	}
}
