package reasoning

import (
	"testing"

	"github.com/sutra-memory/engine/pkg/types"
)

func TestBestFirstSearchFindsReachableTargets(t *testing.T) {
	snap := buildGraph(
		[]string{"dog", "mammal", "animal"},
		[]testEdge{
			{"dog", "mammal", types.Hierarchical, 0.9},
			{"mammal", "animal", types.Hierarchical, 0.9},
		},
	)

	paths := bestFirstSearch(snap, concept("dog"), nil, 6, 3, 0.9)
	if len(paths) == 0 {
		t.Fatal("expected at least one path from dog")
	}

	foundAnimal := false
	for _, p := range paths {
		if p.Target() == concept("animal") {
			foundAnimal = true
			if len(p.Steps) != 2 {
				t.Errorf("expected 2 hops to animal, got %d", len(p.Steps))
			}
		}
	}
	if !foundAnimal {
		t.Error("expected a path reaching animal through mammal")
	}
}

func TestBestFirstSearchRespectsMaxDepth(t *testing.T) {
	snap := buildGraph(
		[]string{"a", "b", "c", "d"},
		[]testEdge{
			{"a", "b", types.Semantic, 0.9},
			{"b", "c", types.Semantic, 0.9},
			{"c", "d", types.Semantic, 0.9},
		},
	)

	paths := bestFirstSearch(snap, concept("a"), nil, 2, 10, 0.9)
	for _, p := range paths {
		if len(p.Steps) > 2 {
			t.Errorf("path exceeded max depth: %d hops", len(p.Steps))
		}
	}
}

func TestBestFirstSearchConfidencePropagation(t *testing.T) {
	snap := buildGraph(
		[]string{"x", "y"},
		[]testEdge{{"x", "y", types.Semantic, 0.5}},
	)
	paths := bestFirstSearch(snap, concept("x"), nil, 6, 3, 0.9)
	if len(paths) != 1 {
		t.Fatalf("expected exactly 1 path, got %d", len(paths))
	}
	want := 1.0 * 0.5 * types.Semantic.TypeWeight() * 0.9
	if diff := paths[0].Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %v, got %v", want, paths[0].Confidence)
	}
}

func TestBreadthFirstSearchAdmitsOnlyBetterConfidence(t *testing.T) {
	snap := buildGraph(
		[]string{"a", "b", "c"},
		[]testEdge{
			{"a", "b", types.Semantic, 0.9},
			{"a", "c", types.Semantic, 0.9},
			{"b", "c", types.Semantic, 0.1},
		},
	)
	paths := breadthFirstSearch(snap, concept("a"), 6, 10, 0.9)
	if len(paths) == 0 {
		t.Fatal("expected some paths")
	}
	// c should only be reached directly (higher confidence than via b).
	var reachedC int
	for _, p := range paths {
		if p.Target() == concept("c") {
			reachedC++
		}
	}
	if reachedC != 1 {
		t.Errorf("expected c reached exactly once (best path wins), got %d", reachedC)
	}
}

func TestBidirectionalSearchMergesAtMeetNode(t *testing.T) {
	snap := buildGraph(
		[]string{"seed", "mid", "target"},
		[]testEdge{
			{"seed", "mid", types.Semantic, 0.8},
			{"mid", "target", types.Semantic, 0.8},
		},
	)
	path := bidirectionalSearch(snap, concept("seed"), concept("target"), 6, 0.9)
	if path == nil {
		t.Fatal("expected a path to be found")
	}
	if path.Target() != concept("target") {
		t.Errorf("expected target to be reached, got %v", path.Target())
	}
}

func TestBidirectionalSearchSameSeedAndTarget(t *testing.T) {
	snap := buildGraph([]string{"only"}, nil)
	path := bidirectionalSearch(snap, concept("only"), concept("only"), 6, 0.9)
	if path == nil || path.Confidence != 1.0 {
		t.Fatalf("expected trivial 1.0-confidence path, got %+v", path)
	}
}

func TestVisitedKeyTracksLastThreeIds(t *testing.T) {
	a := concept("a")
	b := concept("b")
	c := concept("c")
	d := concept("d")

	key1 := visitedKey(d, []types.ConceptId{a, b, c})
	key2 := visitedKey(d, []types.ConceptId{b, c})
	if key1 == key2 {
		t.Error("expected different path contexts to produce different keys when history differs")
	}
}
