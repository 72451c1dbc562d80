package escrow

// CountQuorumVotes counts how many of the supplied authenticated voters belong
// to the escrow's oracle set. A zero-value identity never counts, and each
// oracle slot contributes at most one vote even when duplicated in the voter
// list. The function never mutates state and never fails; callers compare the
// count against the quorum threshold.
func CountQuorumVotes(e *Escrow, voters [][20]byte) uint8 {
	if e == nil || len(e.Oracles) == 0 {
		return 0
	}
	var zero [20]byte
	counted := make([]bool, len(e.Oracles))
	votes := uint8(0)
	for _, voter := range voters {
		if voter == zero {
			continue
		}
		for i, oracle := range e.Oracles {
			if counted[i] || oracle == zero {
				continue
			}
			if oracle == voter {
				counted[i] = true
				votes++
				break
			}
		}
	}
	return votes
}
