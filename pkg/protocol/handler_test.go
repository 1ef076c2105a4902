package protocol

import (
	"context"
	"testing"

	"github.com/sutra-memory/engine/pkg/learning"
	"github.com/sutra-memory/engine/pkg/reasoning"
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/vectorindex"
)

type fakePipeline struct {
	learned []string
	nextErr error
}

func (f *fakePipeline) LearnConcept(ctx context.Context, content string, opts learning.Options) (types.ConceptId, error) {
	if f.nextErr != nil {
		return types.ConceptId{}, f.nextErr
	}
	f.learned = append(f.learned, content)
	return types.DeriveConceptId(content), nil
}

type fakeReasoning struct {
	result  *reasoning.Result
	err     error
	path    *reasoning.Path
	queried string
}

func (f *fakeReasoning) Reason(ctx context.Context, query string, opts reasoning.Options) (*reasoning.Result, error) {
	f.queried = query
	return f.result, f.err
}

func (f *fakeReasoning) FindPath(start, end types.ConceptId, maxDepth int) *reasoning.Path {
	return f.path
}

type fakeVectors struct {
	hits []vectorindex.Scored
	err  error
}

func (f *fakeVectors) Search(query []float32, k int) ([]vectorindex.Scored, error) {
	return f.hits, f.err
}

func buildTestSnapshot() *snapshot.GraphSnapshot {
	b := snapshot.NewBuilder(nil)
	dogId := types.DeriveConceptId("dog")
	mammalId := types.DeriveConceptId("mammal")
	b.ApplyLearnConcept(dogId, "dog", []float32{0.1, 0.2}, 5.0, 0.8, 1000, types.SemanticEntity)
	b.ApplyLearnConcept(mammalId, "mammal", nil, 5.0, 0.8, 1000, types.SemanticEntity)
	b.ApplyLearnAssociation(dogId, mammalId, types.Hierarchical, 0.9, 1000)
	return b.Finish(1, 1000)
}

func TestHandleLearnConceptV2(t *testing.T) {
	pipeline := &fakePipeline{}
	h := &Handler{Pipeline: pipeline}
	resp := h.Handle(context.Background(), &Request{
		Kind:           ReqLearnConceptV2,
		LearnConceptV2: &LearnConceptV2Request{Content: "the sky is blue"},
	})
	if resp.Kind != RespLearnConceptV2Ok {
		t.Fatalf("expected RespLearnConceptV2Ok, got %+v", resp)
	}
	if resp.LearnConceptV2.ConceptId != types.DeriveConceptId("the sky is blue").String() {
		t.Errorf("unexpected concept id: %s", resp.LearnConceptV2.ConceptId)
	}
	if len(pipeline.learned) != 1 {
		t.Errorf("expected pipeline to record one learn call, got %d", len(pipeline.learned))
	}
}

func TestHandleLearnConceptV2WithoutPipelineReturnsError(t *testing.T) {
	h := &Handler{}
	resp := h.Handle(context.Background(), &Request{
		Kind:           ReqLearnConceptV2,
		LearnConceptV2: &LearnConceptV2Request{Content: "x"},
	})
	if resp.Kind != RespError {
		t.Fatalf("expected RespError, got %+v", resp)
	}
}

func TestHandleLearnBatch(t *testing.T) {
	pipeline := &fakePipeline{}
	h := &Handler{Pipeline: pipeline}
	resp := h.Handle(context.Background(), &Request{
		Kind:       ReqLearnBatch,
		LearnBatch: &LearnBatchRequest{Contents: []string{"a", "b", "c"}},
	})
	if resp.Kind != RespLearnBatchOk {
		t.Fatalf("expected RespLearnBatchOk, got %+v", resp)
	}
	if len(resp.LearnBatch.ConceptIds) != 3 {
		t.Fatalf("expected 3 concept ids, got %d", len(resp.LearnBatch.ConceptIds))
	}
}

func TestHandleQueryConceptFound(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqQueryConcept,
		QueryConcept: &QueryConceptRequest{ConceptId: types.DeriveConceptId("dog").String()},
	})
	if resp.Kind != RespQueryConceptOk || !resp.QueryConcept.Found {
		t.Fatalf("expected a found concept, got %+v", resp)
	}
	if resp.QueryConcept.Content != "dog" {
		t.Errorf("expected content 'dog', got %q", resp.QueryConcept.Content)
	}
}

func TestHandleQueryConceptNotFound(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqQueryConcept,
		QueryConcept: &QueryConceptRequest{ConceptId: types.DeriveConceptId("nowhere").String()},
	})
	if resp.Kind != RespQueryConceptOk || resp.QueryConcept.Found {
		t.Fatalf("expected not found, got %+v", resp)
	}
}

func TestHandleQueryConceptInvalidId(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqQueryConcept,
		QueryConcept: &QueryConceptRequest{ConceptId: "not-a-valid-id"},
	})
	if resp.Kind != RespError {
		t.Fatalf("expected RespError for a malformed id, got %+v", resp)
	}
}

func TestHandleGetNeighbors(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqGetNeighbors,
		GetNeighbors: &GetNeighborsRequest{ConceptId: types.DeriveConceptId("dog").String()},
	})
	if resp.Kind != RespGetNeighborsOk {
		t.Fatalf("expected RespGetNeighborsOk, got %+v", resp)
	}
	if len(resp.GetNeighbors.Edges) != 1 || resp.GetNeighbors.Edges[0].Type != types.Hierarchical {
		t.Fatalf("unexpected edges: %+v", resp.GetNeighbors.Edges)
	}
}

func TestHandleGetAssociationFound(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind: ReqGetAssociation,
		GetAssociation: &GetAssociationRequest{
			Source: types.DeriveConceptId("dog").String(),
			Target: types.DeriveConceptId("mammal").String(),
		},
	})
	if resp.Kind != RespGetAssociationOk || !resp.GetAssociation.Found {
		t.Fatalf("expected a found association, got %+v", resp)
	}
}

func TestHandleGetAssociationNotFound(t *testing.T) {
	rv := snapshot.NewReadView(buildTestSnapshot())
	h := &Handler{ReadView: rv}
	resp := h.Handle(context.Background(), &Request{
		Kind: ReqGetAssociation,
		GetAssociation: &GetAssociationRequest{
			Source: types.DeriveConceptId("mammal").String(),
			Target: types.DeriveConceptId("dog").String(),
		},
	})
	if resp.Kind != RespGetAssociationOk || resp.GetAssociation.Found {
		t.Fatalf("expected no association in the reverse direction, got %+v", resp)
	}
}

func TestHandleVectorSearch(t *testing.T) {
	vectors := &fakeVectors{hits: []vectorindex.Scored{
		{Id: types.DeriveConceptId("dog"), Similarity: 0.95},
	}}
	h := &Handler{Vectors: vectors}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqVectorSearch,
		VectorSearch: &VectorSearchRequest{QueryVector: []float32{0.1, 0.2}, K: 5},
	})
	if resp.Kind != RespVectorSearchOk || len(resp.VectorSearch.Hits) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleVectorSearchWithoutIndexReturnsError(t *testing.T) {
	h := &Handler{}
	resp := h.Handle(context.Background(), &Request{
		Kind:         ReqVectorSearch,
		VectorSearch: &VectorSearchRequest{QueryVector: []float32{0.1}, K: 1},
	})
	if resp.Kind != RespError {
		t.Fatalf("expected RespError, got %+v", resp)
	}
}

func TestHandleFindPathFound(t *testing.T) {
	snap := buildTestSnapshot()
	start := types.DeriveConceptId("dog")
	end := types.DeriveConceptId("mammal")
	fakePath := &reasoning.Path{
		Seed:  start,
		Steps: []reasoning.Step{{Concept: end, EdgeType: types.Hierarchical, Confidence: 0.9, Running: 0.7}},
	}
	h := &Handler{ReadView: snapshot.NewReadView(snap), Reasoning: &fakeReasoning{path: fakePath}}
	resp := h.Handle(context.Background(), &Request{
		Kind: ReqFindPath,
		FindPath: &FindPathRequest{
			StartId:  start.String(),
			EndId:    end.String(),
			MaxDepth: 4,
		},
	})
	if resp.Kind != RespFindPathOk || !resp.FindPath.Found {
		t.Fatalf("expected a found path, got %+v", resp)
	}
	if len(resp.FindPath.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(resp.FindPath.Steps))
	}
}

func TestHandleFindPathNotFound(t *testing.T) {
	h := &Handler{ReadView: snapshot.NewReadView(buildTestSnapshot()), Reasoning: &fakeReasoning{path: nil}}
	resp := h.Handle(context.Background(), &Request{
		Kind: ReqFindPath,
		FindPath: &FindPathRequest{
			StartId: types.DeriveConceptId("dog").String(),
			EndId:   types.DeriveConceptId("mammal").String(),
		},
	})
	if resp.Kind != RespFindPathOk || resp.FindPath.Found {
		t.Fatalf("expected not found, got %+v", resp)
	}
}

func TestHandleReason(t *testing.T) {
	fr := &fakeReasoning{result: &reasoning.Result{
		Confident: true,
		Primary:   &reasoning.Answer{Concept: types.DeriveConceptId("mammal"), Score: 0.9},
	}}
	h := &Handler{ReadView: snapshot.NewReadView(buildTestSnapshot()), Reasoning: fr}
	resp := h.Handle(context.Background(), &Request{
		Kind:   ReqReason,
		Reason: &ReasonRequest{Query: "what is a dog"},
	})
	if resp.Kind != RespReasonOk || !resp.Reason.Confident {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if fr.queried != "what is a dog" {
		t.Errorf("expected query to be forwarded, got %q", fr.queried)
	}
}

func TestHandleGetStats(t *testing.T) {
	h := &Handler{ReadView: snapshot.NewReadView(buildTestSnapshot())}
	resp := h.Handle(context.Background(), &Request{Kind: ReqGetStats})
	if resp.Kind != RespGetStatsOk || resp.GetStats.ConceptCount != 2 {
		t.Fatalf("expected concept count 2, got %+v", resp)
	}
}

func TestHandleHealthCheckAndFlush(t *testing.T) {
	h := &Handler{}
	if resp := h.Handle(context.Background(), &Request{Kind: ReqHealthCheck}); resp.Kind != RespHealthCheckOk {
		t.Fatalf("expected RespHealthCheckOk, got %+v", resp)
	}
	if resp := h.Handle(context.Background(), &Request{Kind: ReqFlush}); resp.Kind != RespFlushOk {
		t.Fatalf("expected RespFlushOk, got %+v", resp)
	}
}
