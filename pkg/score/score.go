// Package score combines frozen worker results into one composite score
// and grade band.
package score

import (
	"fmt"
	"sort"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/profile"
)

// Contribution captures a single pillar's share of the composite score.
type Contribution struct {
	Pillar pillar.Pillar `json:"pillar"`
	Worker string        `json:"worker"`
	Score  float64       `json:"score"`
	Weight float64       `json:"weight"`
	Points float64       `json:"points"`
}

// Summary is the aggregated result of a run.
type Summary struct {
	OverallScore  float64        `json:"overall_score"`
	Grade         string         `json:"grade"`
	Contributions []Contribution `json:"contributions"`
}

// Contribution returns the entry for p, if any.
func (s Summary) Contribution(p pillar.Pillar) (Contribution, bool) {
	for _, c := range s.Contributions {
		if c.Pillar == p {
			return c, true
		}
	}
	return Contribution{}, false
}

// Aggregate computes the weighted composite of results. An empty weight
// map splits weight equally across the results' pillars; otherwise the
// weights of the pillars present are renormalized to sum to 100. Results
// are summed in canonical pillar order so the outcome never depends on
// input order. Each pillar may appear once.
func Aggregate(results []pillar.WorkerResult, weights map[pillar.Pillar]float64, bands []profile.Band) (Summary, error) {
	ordered := make([]pillar.WorkerResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return pillar.Less(ordered[i].Pillar, ordered[j].Pillar) })

	for i := 1; i < len(ordered); i++ {
		if ordered[i].Pillar == ordered[i-1].Pillar {
			return Summary{}, fmt.Errorf("pillar %s has more than one result (%s, %s)",
				ordered[i].Pillar, ordered[i-1].Worker, ordered[i].Worker)
		}
	}

	norm := normalize(ordered, weights)

	sum := Summary{Contributions: make([]Contribution, 0, len(ordered))}
	var total float64
	for _, r := range ordered {
		w := norm[r.Pillar]
		points := r.Score * w / 100
		total += points
		sum.Contributions = append(sum.Contributions, Contribution{
			Pillar: r.Pillar,
			Worker: r.Worker,
			Score:  r.Score,
			Weight: pillar.Round2(w),
			Points: pillar.Round2(points),
		})
	}
	sum.OverallScore = pillar.Round2(total)
	sum.Grade = Grade(sum.OverallScore, bands)
	return sum, nil
}

func normalize(ordered []pillar.WorkerResult, weights map[pillar.Pillar]float64) map[pillar.Pillar]float64 {
	out := make(map[pillar.Pillar]float64, len(ordered))
	if len(ordered) == 0 {
		return out
	}

	var total float64
	for _, r := range ordered {
		if w := weights[r.Pillar]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		equal := 100 / float64(len(ordered))
		for _, r := range ordered {
			out[r.Pillar] = equal
		}
		return out
	}
	for _, r := range ordered {
		if w := weights[r.Pillar]; w > 0 {
			out[r.Pillar] = w / total * 100
		}
	}
	return out
}

// Grade returns the name of the highest band whose minimum the score
// reaches. With no matching band the lowest band is returned; with no bands
// at all the reference bands are used.
func Grade(score float64, bands []profile.Band) string {
	if len(bands) == 0 {
		bands = profile.DefaultBands()
	}
	sorted := make([]profile.Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min > sorted[j].Min })

	for _, b := range sorted {
		if score >= b.Min {
			return b.Name
		}
	}
	return sorted[len(sorted)-1].Name
}
