package dice

import (
	"slices"
)

// Selection marks which held dice are used for a payment.
// A selection with no marked dice for a non-empty cost means no payment was found.
type Selection []bool

// Count returns the number of selected dice.
func (s Selection) Count() int {
	n := 0
	for _, v := range s {
		if v {
			n++
		}
	}
	return n
}

// Dice returns the selected faces from held.
func (s Selection) Dice(held []Type) []Type {
	out := make([]Type, 0, s.Count())
	for i, v := range s {
		if v && i < len(held) {
			out = append(out, held[i])
		}
	}
	return out
}

// ChooseDice picks the dice to spend for req, keeping the most valuable
// dice in hand. It returns an all-false selection when req cannot be paid.
func ChooseDice(req Requirement, held []Type, opts Options) Selection {
	if req.IsAligned() {
		return chooseAligned(req.Count(Aligned), held, opts)
	}
	return chooseUnaligned(req, held, opts)
}

// sortForSpending orders dice indices so the cheapest die to lose comes first:
// keep priority descending, then scarcer type first, then position.
func sortForSpending(indices []int, held []Type, opts Options, counts map[Type]int) {
	slices.Sort(indices)
	slices.SortStableFunc(indices, func(a, b int) int {
		pa, pb := KeepPriority(held[a], opts), KeepPriority(held[b], opts)
		if pa != pb {
			return pb - pa
		}
		return counts[held[a]] - counts[held[b]]
	})
}

func countTypes(held []Type) map[Type]int {
	counts := make(map[Type]int, len(held))
	for _, d := range held {
		counts[d]++
	}
	return counts
}

func chooseAligned(n int, held []Type, opts Options) Selection {
	result := make(Selection, len(held))
	if n <= 0 {
		return result
	}
	counts := countTypes(held)

	bestScore := -1
	var best []int
	consider := func(color Type) {
		var candidates []int
		for i, d := range held {
			if d == color || d == Omni {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) < n {
			return
		}
		sortForSpending(candidates, held, opts, counts)
		pick := candidates[:n]
		chosen := make([]Type, 0, n)
		score := 0
		for _, i := range pick {
			chosen = append(chosen, held[i])
			score += KeepPriority(held[i], opts)
		}
		if !checkAligned(n, chosen) {
			return
		}
		if score > bestScore {
			bestScore = score
			best = slices.Clone(pick)
		}
	}

	seen := make(map[Type]bool)
	for _, d := range held {
		if d.IsElemental() && !seen[d] {
			seen[d] = true
			consider(d)
		}
	}
	consider(Omni)

	for _, i := range best {
		result[i] = true
	}
	return result
}

func chooseUnaligned(req Requirement, held []Type, opts Options) Selection {
	result := make(Selection, len(held))
	counts := countTypes(held)
	pool := make([]int, len(held))
	for i := range pool {
		pool[i] = i
	}

	for _, demand := range req.Demands() {
		sortForSpending(pool, held, opts, counts)
		pick := -1
		switch demand {
		case Void:
			if len(pool) > 0 {
				pick = 0
			}
		case Omni:
			pick = slices.IndexFunc(pool, func(i int) bool { return held[i] == Omni })
		default:
			pick = slices.IndexFunc(pool, func(i int) bool { return held[i] == demand })
			if pick < 0 {
				pick = slices.IndexFunc(pool, func(i int) bool { return held[i] == Omni })
			}
		}
		if pick < 0 {
			return make(Selection, len(held))
		}
		result[pool[pick]] = true
		pool = slices.Delete(pool, pick, pick+1)
	}
	return result
}

// CheckDice verifies an externally supplied payment against req without
// recomputing a selection.
func CheckDice(req Requirement, chosen []Type) bool {
	if req.IsAligned() {
		return checkAligned(req.Count(Aligned), chosen)
	}
	work := slices.Clone(chosen)
	voids := 0
	for _, demand := range req.Demands() {
		switch demand {
		case Void:
			voids++
			continue
		case Omni:
			idx := slices.Index(work, Omni)
			if idx < 0 {
				return false
			}
			work = slices.Delete(work, idx, idx+1)
		default:
			idx := slices.Index(work, demand)
			if idx < 0 {
				idx = slices.Index(work, Omni)
			}
			if idx < 0 {
				return false
			}
			work = slices.Delete(work, idx, idx+1)
		}
	}
	return len(work) == voids
}

func checkAligned(n int, chosen []Type) bool {
	if len(chosen) != n {
		return false
	}
	if n == 0 {
		return true
	}
	kinds := make(map[Type]struct{}, 2)
	for _, d := range chosen {
		kinds[d] = struct{}{}
	}
	switch len(kinds) {
	case 1:
		return true
	case 2:
		_, hasOmni := kinds[Omni]
		return hasOmni
	default:
		return false
	}
}
