package activelearning

import (
	"cmp"
	"maps"
	"slices"

	"github.com/wildlens/wildlens-go/internal/logger"
)

// Stats describes one selection run.
type Stats struct {
	PoolSize          int // images handed to the selector
	Malformed         int // images left out because their detections did not validate
	Selected          int
	ByDiversity       int // accepted by the diversity criteria
	ByEntropyFill     int // appended from the entropy order
	MinorityClasses   int
	MinorityExhausted int // minority classes whose quota ran out
	Quota             int // per-class minority quota
}

// Result is the ordered output of Select.
type Result struct {
	Indices   []int // pool indices, best first
	Malformed []int // pool indices left out, in pool order
	Stats     Stats
	// Quotas and Open are the minority quota table and open-class mask
	// after the diversity pass, indexed by class id.
	Quotas []int
	Open   []bool
}

// Selector runs ENMS-DivProto sample selection. A Selector holds no state
// between calls and may be shared.
type Selector struct {
	params Params
}

// NewSelector creates a selector with the given parameters.
func NewSelector(p Params) *Selector {
	return &Selector{params: p}
}

type scoredImage struct {
	index   int
	entropy float64
	proto   Prototype
}

// Select ranks pool and returns at most budget pool indices, best first.
//
// Images are traversed in descending total entropy (pool order on ties). An
// image is accepted while its intra-class diversity is below the intra
// threshold and it shows at least one open minority class; each acceptance
// spends one quota unit of every minority class it shows. Remaining slots are
// filled from the entropy order.
//
// An image whose detections fail validation is logged and left out of the
// run; the output length is min(budget, number of valid images).
func (s *Selector) Select(pool []Image, labeled ClassCounts, budget, numClasses int) Result {
	res := Result{Stats: Stats{PoolSize: len(pool)}}
	if budget <= 0 || len(pool) == 0 {
		return res
	}

	scored := make([]scoredImage, 0, len(pool))
	for i, img := range pool {
		score, err := ScoreImage(img, s.params)
		if err != nil {
			res.Malformed = append(res.Malformed, i)
			GetLogger().Warn("excluding image with malformed detections",
				logger.Uint64("image_id", uint64(img.ID)),
				logger.Error(err))
			continue
		}
		scored = append(scored, scoredImage{index: i, entropy: score.TotalEntropy, proto: score.Prototype})
	}
	res.Stats.Malformed = len(res.Malformed)
	slices.SortStableFunc(scored, func(a, b scoredImage) int {
		return cmp.Compare(b.entropy, a.entropy)
	})

	minority := MinorityClasses(labeled, numClasses, budget, s.params)
	quotas := minority.Quotas
	remaining := minority.Remaining()
	res.Stats.MinorityClasses = minority.Count
	if minority.Count > 0 {
		res.Stats.Quota = quotas[minority.Classes[0]]
	}

	taken := make([]bool, len(pool))
	selected := make([]int, 0, min(budget, len(scored)))
	var selectedProtos []Prototype

	for _, cand := range scored {
		if len(selected) >= budget {
			break
		}
		intra := IntraClassDiversity(cand.proto, selectedProtos)
		classes, confidences, _ := pool[cand.index].Columns()
		present, maxConf := InterClassPresence(classes, confidences, remaining, s.params.InterThreshold)
		if intra >= s.params.IntraThreshold || maxConf <= 0 {
			continue
		}

		selected = append(selected, cand.index)
		selectedProtos = append(selectedProtos, cand.proto)
		taken[cand.index] = true
		res.Stats.ByDiversity++

		for _, c := range slices.Sorted(maps.Keys(present)) {
			if quotas[c] > 0 {
				quotas[c]--
			}
			if quotas[c] <= 0 && remaining[c] {
				remaining[c] = false
				res.Stats.MinorityExhausted++
			}
		}
	}

	for _, cand := range scored {
		if len(selected) >= budget {
			break
		}
		if !taken[cand.index] {
			selected = append(selected, cand.index)
			taken[cand.index] = true
			res.Stats.ByEntropyFill++
		}
	}

	res.Indices = selected
	res.Quotas = quotas
	res.Open = remaining
	res.Stats.Selected = len(selected)
	return res
}

// Rank drops images without detections and returns the ids of the selected
// images, best first. Images with malformed detections are left out as in
// Select.
func (s *Selector) Rank(pool []Image, labeled ClassCounts, budget, numClasses int) ([]uint, Stats) {
	candidates := make([]Image, 0, len(pool))
	for _, img := range pool {
		if len(img.Detections) > 0 {
			candidates = append(candidates, img)
		}
	}

	res := s.Select(candidates, labeled, budget, numClasses)
	ids := make([]uint, len(res.Indices))
	for k, i := range res.Indices {
		ids[k] = candidates[i].ID
	}
	return ids, res.Stats
}
