package mutation

// NextRandom is the deterministic step of the game's random sequence
// (splitmix64). The producer of a StepRandom computes the value from the
// current cursor so replay never recomputes randomness.
func NextRandom(cursor uint64) uint64 {
	z := cursor + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
