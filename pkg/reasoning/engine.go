package reasoning

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sutra-memory/engine/pkg/metrics"
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
)

// Strengthener abstracts pkg/learning.Pipeline.Strengthen, so successful
// traversals can schedule the Strengthen side effect of spec.md §4.7
// without this package depending on the WAL/WriteLog plumbing directly.
type Strengthener interface {
	Strengthen(id types.ConceptId) error
}

// Engine is the ReasoningEngine (C7).
type Engine struct {
	readView     *snapshot.ReadView
	index        VectorSearcher
	embedder     Embedder
	strengthener Strengthener
	reg          *metrics.Registry
}

// New creates an Engine. index and embedder may both be nil, in which case
// seed selection falls back to word-index lookups only. strengthener may be
// nil, in which case the post-answer Strengthen side effect is skipped.
func New(readView *snapshot.ReadView, index VectorSearcher, embedder Embedder, strengthener Strengthener, reg *metrics.Registry) *Engine {
	return &Engine{readView: readView, index: index, embedder: embedder, strengthener: strengthener, reg: reg}
}

// Reason runs the full pipeline of spec.md §4.7 and returns a Result.
func (e *Engine) Reason(ctx context.Context, query string, opts Options) (*Result, error) {
	snap := e.readView.Load()

	seeds, err := selectSeeds(ctx, snap, e.index, e.embedder, query, opts.SeedCount)
	if err != nil {
		return nil, err
	}

	var allPaths []*Path
	for _, seed := range seeds {
		best := bestFirstSearch(snap, seed.Concept, nil, opts.MaxDepth, opts.PathsPerSeedTarget, opts.Alpha)
		breadth := breadthFirstSearch(snap, seed.Concept, opts.MaxDepth, opts.PathsPerSeedTarget, opts.Alpha)
		allPaths = append(allPaths, best...)
		allPaths = append(allPaths, breadth...)
	}

	sort.Slice(allPaths, func(i, j int) bool { return allPaths[i].Score() > allPaths[j].Score() })

	diverse := diversify(allPaths, 0)
	answers := aggregate(snap, diverse)

	if e.reg != nil {
		e.reg.ReasoningQueries.Inc()
	}

	result := &Result{Paths: diverse}
	if len(answers) == 0 {
		if e.reg != nil {
			e.reg.ReasoningLowConfidence.Inc()
		}
		return result, nil
	}

	primary := answers[0]
	result.Confident = primary.Score >= opts.MinAnswerScore
	result.Primary = primary
	if len(answers) > 1 {
		alts := answers[1:]
		if len(alts) > opts.MaxAlternatives {
			alts = alts[:opts.MaxAlternatives]
		}
		result.Alternatives = alts
	}

	if !result.Confident && e.reg != nil {
		e.reg.ReasoningLowConfidence.Inc()
	}
	if result.Confident {
		e.strengthenVisited(primary)
	}

	return result, nil
}

// strengthenVisited schedules a Strengthen entry for every concept on every
// supporting path of the winning answer (spec.md §4.7: "every concept
// visited during successful traversal"). Strengthen errors are discarded
// here, neither logged nor surfaced, since a missed reinforcement must
// never fail the query that triggered it.
func (e *Engine) strengthenVisited(answer *Answer) {
	if e.strengthener == nil {
		return
	}
	seen := make(map[types.ConceptId]bool)
	for _, p := range answer.Support {
		for _, id := range p.Visited() {
			if seen[id] {
				continue
			}
			seen[id] = true
			_ = e.strengthener.Strengthen(id)
		}
	}
}

// FindPath runs a targeted best-first search from start to end, used by the
// protocol's find_path request rather than Reason's open-ended form. Returns
// nil if no path within maxDepth connects the two concepts.
func (e *Engine) FindPath(start, end types.ConceptId, maxDepth int) *Path {
	snap := e.readView.Load()
	paths := bestFirstSearch(snap, start, &end, maxDepth, 1, DefaultOptions().Alpha)
	for _, p := range paths {
		if p.Target() == end {
			return p
		}
	}
	return nil
}

// Explain renders a human-readable justification for the primary answer,
// one line per supporting path, using each path's concepts and edge types.
func Explain(snap *snapshot.GraphSnapshot, result *Result) string {
	if result == nil || result.Primary == nil {
		return "no confident answer found"
	}
	var b strings.Builder
	target := snap.Concept(result.Primary.Concept)
	if target != nil {
		fmt.Fprintf(&b, "answer: %s (score %.2f)\n", target.Content, result.Primary.Score)
	} else {
		fmt.Fprintf(&b, "answer: %s (score %.2f)\n", result.Primary.Concept.String(), result.Primary.Score)
	}
	for _, p := range result.Primary.Support {
		b.WriteString(explainPath(snap, p))
		b.WriteByte('\n')
	}
	return b.String()
}

func explainPath(snap *snapshot.GraphSnapshot, p *Path) string {
	var b strings.Builder
	b.WriteString(conceptLabel(snap, p.Seed))
	for _, s := range p.Steps {
		fmt.Fprintf(&b, " -[%s]-> %s", s.EdgeType, conceptLabel(snap, s.Concept))
	}
	return b.String()
}

func conceptLabel(snap *snapshot.GraphSnapshot, id types.ConceptId) string {
	if c := snap.Concept(id); c != nil {
		return c.Content
	}
	return id.String()
}
