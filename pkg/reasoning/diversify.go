package reasoning

// maxPerFingerprint caps how many paths sharing the same edge-type sequence
// survive diversification, so one repetitive shape can't crowd out the
// rest of the candidate set.
const maxPerFingerprint = 2

// diversify implements spec.md §4.7 step 3: group paths by their edge-type
// fingerprint and penalize redundant paths so the returned set favors
// distinct reasoning shapes over many near-identical ones to the same
// target. Callers pass paths pre-sorted by score descending so the
// survivors of each fingerprint group are its best members.
func diversify(paths []*Path, limit int) []*Path {
	counts := make(map[uint64]int, len(paths))
	kept := make([]*Path, 0, len(paths))
	for _, p := range paths {
		fp := p.TypeFingerprint()
		if counts[fp] >= maxPerFingerprint {
			continue
		}
		counts[fp]++
		kept = append(kept, p)
		if limit > 0 && len(kept) >= limit {
			break
		}
	}
	return kept
}
