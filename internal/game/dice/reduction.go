package dice

// Reduce lowers the demand for type t by up to n and returns the new
// requirement and how much was actually removed.
func (r Requirement) Reduce(t Type, n int) (Requirement, int) {
	out := r.Clone()
	for i := range out {
		if out[i].Type != t || n <= 0 {
			continue
		}
		removed := min(out[i].Count, n)
		out[i].Count -= removed
		return out, removed
	}
	return out, 0
}

// ReduceAny lowers the dice part of the cost by up to n, taking void first,
// then aligned, then specific elements in declaration order. Energy is
// never reduced.
func (r Requirement) ReduceAny(n int) (Requirement, int) {
	out := r.Clone()
	total := 0
	order := []func(Type) bool{
		func(t Type) bool { return t == Void },
		func(t Type) bool { return t == Aligned },
		func(t Type) bool { return t.IsElemental() || t == Omni },
	}
	for _, match := range order {
		for i := range out {
			if n <= 0 {
				return out, total
			}
			if !match(out[i].Type) {
				continue
			}
			removed := min(out[i].Count, n)
			out[i].Count -= removed
			n -= removed
			total += removed
		}
	}
	return out, total
}

// ReduceEnergy lowers the energy demand by up to n.
func (r Requirement) ReduceEnergy(n int) (Requirement, int) {
	return r.Reduce(Energy, n)
}
