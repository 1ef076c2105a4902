package protocol

import (
	"context"

	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/learning"
	"github.com/sutra-memory/engine/pkg/reasoning"
	"github.com/sutra-memory/engine/pkg/snapshot"
	"github.com/sutra-memory/engine/pkg/types"
	"github.com/sutra-memory/engine/pkg/vectorindex"
)

// LearningPipeline abstracts pkg/learning.Pipeline's write path.
type LearningPipeline interface {
	LearnConcept(ctx context.Context, content string, opts learning.Options) (types.ConceptId, error)
}

// ReasoningEngine abstracts pkg/reasoning.Engine.
type ReasoningEngine interface {
	Reason(ctx context.Context, query string, opts reasoning.Options) (*reasoning.Result, error)
	FindPath(start, end types.ConceptId, maxDepth int) *reasoning.Path
}

// VectorSearcher abstracts pkg/vectorindex.Index's read path, independent
// of reasoning.VectorSearcher so this package never needs to import
// pkg/reasoning for a plain vector_search request.
type VectorSearcher interface {
	Search(query []float32, k int) ([]vectorindex.Scored, error)
}

// Handler dispatches decoded Requests against the engine's read/write
// surfaces and the graph snapshot. Every dependency is an interface so the
// package has no build-order dependency on the concrete wiring in cmd/.
type Handler struct {
	Pipeline  LearningPipeline
	Reasoning ReasoningEngine
	ReadView  *snapshot.ReadView
	Vectors   VectorSearcher
}

// Handle dispatches req and returns the matching response variant. It never
// returns an error itself: protocol-level failures are reported as a
// RespError response, per spec §4.8 ("on any protocol error, write one
// Error response"); transport-level errors are the caller's concern.
func (h *Handler) Handle(ctx context.Context, req *Request) *Response {
	switch req.Kind {
	case ReqLearnConceptV2:
		return h.handleLearnConceptV2(ctx, req.LearnConceptV2)
	case ReqLearnBatch:
		return h.handleLearnBatch(ctx, req.LearnBatch)
	case ReqQueryConcept:
		return h.handleQueryConcept(req.QueryConcept)
	case ReqGetNeighbors:
		return h.handleGetNeighbors(req.GetNeighbors)
	case ReqGetAssociation:
		return h.handleGetAssociation(req.GetAssociation)
	case ReqFindPath:
		return h.handleFindPath(req.FindPath)
	case ReqVectorSearch:
		return h.handleVectorSearch(req.VectorSearch)
	case ReqReason:
		return h.handleReason(ctx, req.Reason)
	case ReqGetStats:
		return h.handleGetStats()
	case ReqHealthCheck:
		return &Response{Kind: RespHealthCheckOk}
	case ReqFlush:
		return &Response{Kind: RespFlushOk}
	default:
		return errorResponse("unknown request kind")
	}
}

func toWireOptions(o LearnOptions) learning.Options {
	return learning.Options{
		GenerateEmbedding:         o.GenerateEmbedding,
		ExtractAssociations:       o.ExtractAssociations,
		AnalyzeSemantics:          o.AnalyzeSemantics,
		MinAssociationConfidence:  float64(o.MinAssociationConfidence),
		MaxAssociationsPerConcept: int(o.MaxAssociationsPerConcept),
		InitialStrength:           float64(o.Strength),
		InitialConfidence:         float64(o.Confidence),
	}
}

func (h *Handler) handleLearnConceptV2(ctx context.Context, req *LearnConceptV2Request) *Response {
	if h.Pipeline == nil {
		return errorResponse("learning pipeline unavailable")
	}
	id, err := h.Pipeline.LearnConcept(ctx, req.Content, toWireOptions(req.Options))
	if err != nil {
		return errorResponse(err.Error())
	}
	return &Response{Kind: RespLearnConceptV2Ok, LearnConceptV2: &LearnConceptV2Response{ConceptId: id.String()}}
}

func (h *Handler) handleLearnBatch(ctx context.Context, req *LearnBatchRequest) *Response {
	if h.Pipeline == nil {
		return errorResponse("learning pipeline unavailable")
	}
	opts := toWireOptions(req.Options)
	ids := make([]string, 0, len(req.Contents))
	for _, content := range req.Contents {
		id, err := h.Pipeline.LearnConcept(ctx, content, opts)
		if err != nil {
			return errorResponse(err.Error())
		}
		ids = append(ids, id.String())
	}
	return &Response{Kind: RespLearnBatchOk, LearnBatch: &LearnBatchResponse{ConceptIds: ids}}
}

func (h *Handler) handleQueryConcept(req *QueryConceptRequest) *Response {
	id, err := types.ParseConceptId(req.ConceptId)
	if err != nil {
		return errorResponse(err.Error())
	}
	snap := h.ReadView.Load()
	c := snap.Concept(id)
	if c == nil {
		return &Response{Kind: RespQueryConceptOk, QueryConcept: &QueryConceptResponse{Found: false}}
	}
	return &Response{Kind: RespQueryConceptOk, QueryConcept: &QueryConceptResponse{
		Found:      true,
		ConceptId:  id.String(),
		Content:    c.Content,
		Strength:   float32(c.Strength),
		Confidence: float32(c.Confidence),
	}}
}

func (h *Handler) handleGetNeighbors(req *GetNeighborsRequest) *Response {
	id, err := types.ParseConceptId(req.ConceptId)
	if err != nil {
		return errorResponse(err.Error())
	}
	snap := h.ReadView.Load()
	list := snap.OutgoingEdges(id)
	if list == nil {
		return &Response{Kind: RespGetNeighborsOk, GetNeighbors: &GetNeighborsResponse{}}
	}
	edges := make([]NeighborEdge, len(list.Edges))
	for i, e := range list.Edges {
		edges[i] = NeighborEdge{Target: e.Target.String(), Type: e.Type, Confidence: float32(e.Confidence)}
	}
	return &Response{Kind: RespGetNeighborsOk, GetNeighbors: &GetNeighborsResponse{Edges: edges}}
}

func (h *Handler) handleGetAssociation(req *GetAssociationRequest) *Response {
	source, err := types.ParseConceptId(req.Source)
	if err != nil {
		return errorResponse(err.Error())
	}
	target, err := types.ParseConceptId(req.Target)
	if err != nil {
		return errorResponse(err.Error())
	}
	snap := h.ReadView.Load()
	list := snap.OutgoingEdges(source)
	if list == nil {
		return &Response{Kind: RespGetAssociationOk, GetAssociation: &GetAssociationResponse{Found: false}}
	}
	for _, e := range list.Edges {
		if e.Target == target {
			return &Response{Kind: RespGetAssociationOk, GetAssociation: &GetAssociationResponse{
				Found:      true,
				Type:       e.Type,
				Confidence: float32(e.Confidence),
				Weight:     float32(e.Weight),
			}}
		}
	}
	return &Response{Kind: RespGetAssociationOk, GetAssociation: &GetAssociationResponse{Found: false}}
}

func (h *Handler) handleFindPath(req *FindPathRequest) *Response {
	if h.Reasoning == nil {
		return errorResponse("reasoning engine unavailable")
	}
	start, err := types.ParseConceptId(req.StartId)
	if err != nil {
		return errorResponse(err.Error())
	}
	end, err := types.ParseConceptId(req.EndId)
	if err != nil {
		return errorResponse(err.Error())
	}
	maxDepth := int(req.MaxDepth)
	if maxDepth <= 0 {
		maxDepth = reasoning.DefaultOptions().MaxDepth
	}
	path := h.Reasoning.FindPath(start, end, maxDepth)
	if path == nil {
		return &Response{Kind: RespFindPathOk, FindPath: &FindPathResponse{Found: false}}
	}
	steps := make([]PathStep, len(path.Steps))
	for i, s := range path.Steps {
		steps[i] = PathStep{ConceptId: s.Concept.String(), Type: s.EdgeType, Confidence: float32(s.Confidence)}
	}
	return &Response{Kind: RespFindPathOk, FindPath: &FindPathResponse{Found: true, Steps: steps}}
}

func (h *Handler) handleVectorSearch(req *VectorSearchRequest) *Response {
	if h.Vectors == nil {
		return errorResponse("vector index unavailable")
	}
	k := int(req.K)
	if k <= 0 {
		return errorResponse("k must be positive")
	}
	hits, err := h.Vectors.Search(req.QueryVector, k)
	if err != nil {
		if kind, ok := errorsx.KindOf(err); ok {
			return errorResponse(string(kind) + ": " + err.Error())
		}
		return errorResponse(err.Error())
	}
	out := make([]VectorSearchHit, len(hits))
	for i, s := range hits {
		out[i] = VectorSearchHit{ConceptId: s.Id.String(), Similarity: float32(s.Similarity)}
	}
	return &Response{Kind: RespVectorSearchOk, VectorSearch: &VectorSearchResponse{Hits: out}}
}

func (h *Handler) handleReason(ctx context.Context, req *ReasonRequest) *Response {
	if h.Reasoning == nil {
		return errorResponse("reasoning engine unavailable")
	}
	opts := reasoning.DefaultOptions()
	if req.NumPaths > 0 {
		opts.PathsPerSeedTarget = int(req.NumPaths)
	}
	result, err := h.Reasoning.Reason(ctx, req.Query, opts)
	if err != nil {
		return errorResponse(err.Error())
	}
	resp := &ReasonResponse{Confident: result.Confident}
	if result.Primary != nil {
		resp.AnswerId = result.Primary.Concept.String()
		resp.Score = float32(result.Primary.Score)
		snap := h.ReadView.Load()
		resp.Explanation = reasoning.Explain(snap, result)
	} else {
		resp.Explanation = reasoning.Explain(nil, result)
	}
	return &Response{Kind: RespReasonOk, Reason: resp}
}

func (h *Handler) handleGetStats() *Response {
	snap := h.ReadView.Load()
	return &Response{Kind: RespGetStatsOk, GetStats: &GetStatsResponse{ConceptCount: uint64(snap.ConceptCount())}}
}
