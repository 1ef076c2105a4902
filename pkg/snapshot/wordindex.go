package snapshot

import "strings"

// WordIndexEntry is one row of the inverted word-to-concepts index
// (spec.md §4.7 step 1: "tokenize the query and look up concept ids via an
// inverted word-to-concepts index maintained incrementally in the
// snapshot"). Satisfies NonLockingReadMap's KeyGetter[string].
type WordIndexEntry struct {
	Word       string
	ConceptIds []string // hex ConceptId strings, deduplicated
}

func (e *WordIndexEntry) GetKey() string { return e.Word }

func (e *WordIndexEntry) ComputeSize() uint {
	return uint(len(e.Word) + len(e.ConceptIds)*16)
}

// Clone returns a copy with its own backing slice.
func (e *WordIndexEntry) Clone() *WordIndexEntry {
	cp := &WordIndexEntry{Word: e.Word}
	cp.ConceptIds = append([]string(nil), e.ConceptIds...)
	return cp
}

func addConceptId(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Tokenize splits concept content into lowercase word-index keys. Plain
// stdlib strings.Fields + ToLower — no tokenizer library appears anywhere
// in the retrieved pack, and this index only needs word-boundary splitting,
// not language-aware segmentation, so stdlib is the right tool here.
func Tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
