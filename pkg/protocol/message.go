// Package protocol implements the Protocol Server (C8): a length-prefixed
// binary request/response loop over net.Listener. Framing mirrors the
// teacher's WAL entry shape (fixed header, then payload) applied to a
// socket instead of a file; request/response variants follow the same
// tagged-struct idiom pkg/writelog.WriteEntry already uses for the WAL's
// own WriteEntry variants, rather than an interface + type switch.
package protocol

import "github.com/sutra-memory/engine/pkg/types"

// RequestKind tags which variant of Request is populated, per spec §6's
// authoritative variant list.
type RequestKind uint8

const (
	ReqLearnConceptV2 RequestKind = iota + 1
	ReqLearnBatch
	ReqQueryConcept
	ReqGetNeighbors
	ReqGetAssociation
	ReqFindPath
	ReqVectorSearch
	ReqReason
	ReqGetStats
	ReqHealthCheck
	ReqFlush
)

// LearnOptions mirrors spec §6's LearnOptions wire fields exactly.
type LearnOptions struct {
	GenerateEmbedding         bool
	ExtractAssociations       bool
	AnalyzeSemantics          bool
	MinAssociationConfidence  float32
	MaxAssociationsPerConcept uint32
	Strength                  float32
	Confidence                float32
}

// Request is the tagged variant read off the wire. Exactly one field group
// is populated, selected by Kind.
type Request struct {
	Kind RequestKind

	LearnConceptV2 *LearnConceptV2Request
	LearnBatch     *LearnBatchRequest
	QueryConcept   *QueryConceptRequest
	GetNeighbors   *GetNeighborsRequest
	GetAssociation *GetAssociationRequest
	FindPath       *FindPathRequest
	VectorSearch   *VectorSearchRequest
	Reason         *ReasonRequest
	// GetStats, HealthCheck, Flush carry no fields.
}

type LearnConceptV2Request struct {
	Content string
	Options LearnOptions
}

type LearnBatchRequest struct {
	Contents []string
	Options  LearnOptions
}

type QueryConceptRequest struct {
	ConceptId string
}

type GetNeighborsRequest struct {
	ConceptId string
}

type GetAssociationRequest struct {
	Source string
	Target string
}

type FindPathRequest struct {
	StartId  string
	EndId    string
	MaxDepth uint32
}

type VectorSearchRequest struct {
	QueryVector []float32
	K           uint32
}

type ReasonRequest struct {
	Query    string
	NumPaths uint32
	Strategy string // "best_first" | "breadth_first" | "bidirectional"
}

// ResponseKind tags which variant of Response is populated. Every request
// variant has a matching "Ok" response variant, plus the single shared
// Error variant (spec §6).
type ResponseKind uint8

const (
	RespLearnConceptV2Ok ResponseKind = iota + 1
	RespLearnBatchOk
	RespQueryConceptOk
	RespGetNeighborsOk
	RespGetAssociationOk
	RespFindPathOk
	RespVectorSearchOk
	RespReasonOk
	RespGetStatsOk
	RespHealthCheckOk
	RespFlushOk
	RespError
)

type Response struct {
	Kind ResponseKind

	LearnConceptV2 *LearnConceptV2Response
	LearnBatch     *LearnBatchResponse
	QueryConcept   *QueryConceptResponse
	GetNeighbors   *GetNeighborsResponse
	GetAssociation *GetAssociationResponse
	FindPath       *FindPathResponse
	VectorSearch   *VectorSearchResponse
	Reason         *ReasonResponse
	GetStats       *GetStatsResponse
	Error          *ErrorResponse
}

type LearnConceptV2Response struct {
	ConceptId string
}

type LearnBatchResponse struct {
	ConceptIds []string
}

type QueryConceptResponse struct {
	Found      bool
	ConceptId  string
	Content    string
	Strength   float32
	Confidence float32
}

type NeighborEdge struct {
	Target     string
	Type       types.AssociationType
	Confidence float32
}

type GetNeighborsResponse struct {
	Edges []NeighborEdge
}

type GetAssociationResponse struct {
	Found      bool
	Type       types.AssociationType
	Confidence float32
	Weight     float32
}

type PathStep struct {
	ConceptId  string
	Type       types.AssociationType
	Confidence float32
}

type FindPathResponse struct {
	Found bool
	Steps []PathStep
}

type VectorSearchHit struct {
	ConceptId  string
	Similarity float32
}

type VectorSearchResponse struct {
	Hits []VectorSearchHit
}

type ReasonResponse struct {
	Confident   bool
	AnswerId    string
	Score       float32
	Explanation string
}

type GetStatsResponse struct {
	ConceptCount uint64
}

type ErrorResponse struct {
	Message string
}

// errorResponse builds an Error response variant from msg.
func errorResponse(msg string) *Response {
	return &Response{Kind: RespError, Error: &ErrorResponse{Message: msg}}
}
