package activelearning

import (
	"slices"
)

// Minority is the minority-class quota table of one selection run.
type Minority struct {
	Classes []int // minority class ids, rarest first
	Quotas  []int // per class id; zero for majority classes
	Count   int   // number of minority classes
}

// MinorityClasses picks the floor(alpha*numClasses) least-labeled classes
// (ties keep the lower id first) and gives each a quota of
// floor(beta*budget / (alpha*numClasses)) selections.
func MinorityClasses(counts ClassCounts, numClasses, budget int, p Params) Minority {
	if numClasses <= 0 {
		return Minority{}
	}

	order := make([]int, numClasses)
	for c := range order {
		order[c] = c
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return counts.Get(a) - counts.Get(b)
	})

	count := min(int(p.Alpha*float64(numClasses)), numClasses)
	quota := 0
	if denom := p.Alpha * float64(numClasses); denom > 0 && budget > 0 {
		quota = int(p.Beta * float64(budget) / denom)
	}

	quotas := make([]int, numClasses)
	for _, c := range order[:count] {
		quotas[c] = quota
	}
	return Minority{
		Classes: order[:count],
		Quotas:  quotas,
		Count:   count,
	}
}

// Remaining returns the open-class mask used by InterClassPresence.
func (m Minority) Remaining() []bool {
	mask := make([]bool, len(m.Quotas))
	for _, c := range m.Classes {
		mask[c] = true
	}
	return mask
}
