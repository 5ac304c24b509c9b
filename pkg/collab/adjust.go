package collab

import (
	"errors"
	"sort"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
)

// ApplyAdjustments applies adjustments to base in sequence order. Each one
// produces a new result version; the returned slice holds every version
// including base. An adjustment whose sequence number was already applied
// is skipped.
func ApplyAdjustments(base pillar.WorkerResult, adjustments []pillar.Adjustment) ([]pillar.WorkerResult, error) {
	ordered := make([]pillar.Adjustment, len(adjustments))
	copy(ordered, adjustments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	versions := []pillar.WorkerResult{base}
	cur := base
	for _, a := range ordered {
		next, err := cur.WithAdjustment(a)
		if errors.Is(err, pillar.ErrAlreadyAdjusted) {
			continue
		}
		if err != nil {
			return versions, err
		}
		versions = append(versions, next)
		cur = next
	}
	return versions, nil
}

// Latest returns the final version from ApplyAdjustments output.
func Latest(versions []pillar.WorkerResult) pillar.WorkerResult {
	return versions[len(versions)-1]
}

// FindingCount sums the finding counts of messages of kind.
func FindingCount(msgs []Message, kind string) int {
	n := 0
	for _, m := range msgs {
		if m.Payload.Kind == kind && !m.Inert {
			n += m.Payload.FindingCount
		}
	}
	return n
}
