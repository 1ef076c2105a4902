package protocol

import (
	"encoding/binary"
	"math"

	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/types"
)

// buf is a small growable byte-writer, the same hand-rolled shape the WAL
// payload encoders use (pkg/wal/entry.go's EncodeLearnConcept etc.) rather
// than a general-purpose serialization library: every field here is a
// primitive, a string, or a flat slice of one, so a manual writer is both
// simpler and allocates less than reflection-based encoding would.
type buf struct {
	b []byte
}

func (w *buf) u8(v uint8)   { w.b = append(w.b, v) }
func (w *buf) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}
func (w *buf) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}
func (w *buf) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.b = append(w.b, tmp[:]...)
}
func (w *buf) f32(v float32) { w.u32(math.Float32bits(v)) }
func (w *buf) str(s string) {
	w.u32(uint32(len(s)))
	w.b = append(w.b, s...)
}
func (w *buf) strs(ss []string) {
	w.u32(uint32(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}
func (w *buf) f32s(vs []float32) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.f32(v)
	}
}

// reader is the matching sequential little-endian reader, bounds-checked
// against the remaining slice on every read so a truncated or malformed
// payload surfaces as errorsx.InvalidRequest instead of a panic.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return errorsx.New(errorsx.InvalidRequest, "truncated protocol message")
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.b[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) strs() ([]string, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.str(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *reader) f32s() ([]float32, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		if out[i], err = r.f32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (w *buf) options(o LearnOptions) {
	w.boolean(o.GenerateEmbedding)
	w.boolean(o.ExtractAssociations)
	w.boolean(o.AnalyzeSemantics)
	w.f32(o.MinAssociationConfidence)
	w.u32(o.MaxAssociationsPerConcept)
	w.f32(o.Strength)
	w.f32(o.Confidence)
}

func (r *reader) options() (LearnOptions, error) {
	var o LearnOptions
	var err error
	if o.GenerateEmbedding, err = r.boolean(); err != nil {
		return o, err
	}
	if o.ExtractAssociations, err = r.boolean(); err != nil {
		return o, err
	}
	if o.AnalyzeSemantics, err = r.boolean(); err != nil {
		return o, err
	}
	if o.MinAssociationConfidence, err = r.f32(); err != nil {
		return o, err
	}
	if o.MaxAssociationsPerConcept, err = r.u32(); err != nil {
		return o, err
	}
	if o.Strength, err = r.f32(); err != nil {
		return o, err
	}
	if o.Confidence, err = r.f32(); err != nil {
		return o, err
	}
	return o, nil
}

// EncodeRequest serializes req into its wire payload (without the 4-byte
// length prefix, which ReadMessage/WriteMessage handle).
func EncodeRequest(req *Request) []byte {
	w := &buf{}
	w.u8(uint8(req.Kind))
	switch req.Kind {
	case ReqLearnConceptV2:
		w.str(req.LearnConceptV2.Content)
		w.options(req.LearnConceptV2.Options)
	case ReqLearnBatch:
		w.strs(req.LearnBatch.Contents)
		w.options(req.LearnBatch.Options)
	case ReqQueryConcept:
		w.str(req.QueryConcept.ConceptId)
	case ReqGetNeighbors:
		w.str(req.GetNeighbors.ConceptId)
	case ReqGetAssociation:
		w.str(req.GetAssociation.Source)
		w.str(req.GetAssociation.Target)
	case ReqFindPath:
		w.str(req.FindPath.StartId)
		w.str(req.FindPath.EndId)
		w.u32(req.FindPath.MaxDepth)
	case ReqVectorSearch:
		w.f32s(req.VectorSearch.QueryVector)
		w.u32(req.VectorSearch.K)
	case ReqReason:
		w.str(req.Reason.Query)
		w.u32(req.Reason.NumPaths)
		w.str(req.Reason.Strategy)
	case ReqGetStats, ReqHealthCheck, ReqFlush:
		// no fields
	}
	return w.b
}

// DecodeRequest parses a wire payload (sans length prefix) into a Request.
func DecodeRequest(payload []byte) (*Request, error) {
	r := newReader(payload)
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	req := &Request{Kind: RequestKind(kind)}

	switch req.Kind {
	case ReqLearnConceptV2:
		content, err := r.str()
		if err != nil {
			return nil, err
		}
		opts, err := r.options()
		if err != nil {
			return nil, err
		}
		req.LearnConceptV2 = &LearnConceptV2Request{Content: content, Options: opts}
	case ReqLearnBatch:
		contents, err := r.strs()
		if err != nil {
			return nil, err
		}
		opts, err := r.options()
		if err != nil {
			return nil, err
		}
		req.LearnBatch = &LearnBatchRequest{Contents: contents, Options: opts}
	case ReqQueryConcept:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		req.QueryConcept = &QueryConceptRequest{ConceptId: id}
	case ReqGetNeighbors:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		req.GetNeighbors = &GetNeighborsRequest{ConceptId: id}
	case ReqGetAssociation:
		source, err := r.str()
		if err != nil {
			return nil, err
		}
		target, err := r.str()
		if err != nil {
			return nil, err
		}
		req.GetAssociation = &GetAssociationRequest{Source: source, Target: target}
	case ReqFindPath:
		start, err := r.str()
		if err != nil {
			return nil, err
		}
		end, err := r.str()
		if err != nil {
			return nil, err
		}
		depth, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.FindPath = &FindPathRequest{StartId: start, EndId: end, MaxDepth: depth}
	case ReqVectorSearch:
		vec, err := r.f32s()
		if err != nil {
			return nil, err
		}
		k, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.VectorSearch = &VectorSearchRequest{QueryVector: vec, K: k}
	case ReqReason:
		query, err := r.str()
		if err != nil {
			return nil, err
		}
		numPaths, err := r.u32()
		if err != nil {
			return nil, err
		}
		strategy, err := r.str()
		if err != nil {
			return nil, err
		}
		req.Reason = &ReasonRequest{Query: query, NumPaths: numPaths, Strategy: strategy}
	case ReqGetStats, ReqHealthCheck, ReqFlush:
		// no fields
	default:
		return nil, errorsx.Newf(errorsx.InvalidRequest, "unknown request kind %d", kind)
	}
	return req, nil
}

// EncodeResponse serializes resp into its wire payload.
func EncodeResponse(resp *Response) []byte {
	w := &buf{}
	w.u8(uint8(resp.Kind))
	switch resp.Kind {
	case RespLearnConceptV2Ok:
		w.str(resp.LearnConceptV2.ConceptId)
	case RespLearnBatchOk:
		w.strs(resp.LearnBatch.ConceptIds)
	case RespQueryConceptOk:
		c := resp.QueryConcept
		w.boolean(c.Found)
		w.str(c.ConceptId)
		w.str(c.Content)
		w.f32(c.Strength)
		w.f32(c.Confidence)
	case RespGetNeighborsOk:
		edges := resp.GetNeighbors.Edges
		w.u32(uint32(len(edges)))
		for _, e := range edges {
			w.str(e.Target)
			w.u8(uint8(e.Type))
			w.f32(e.Confidence)
		}
	case RespGetAssociationOk:
		a := resp.GetAssociation
		w.boolean(a.Found)
		w.u8(uint8(a.Type))
		w.f32(a.Confidence)
		w.f32(a.Weight)
	case RespFindPathOk:
		p := resp.FindPath
		w.boolean(p.Found)
		w.u32(uint32(len(p.Steps)))
		for _, s := range p.Steps {
			w.str(s.ConceptId)
			w.u8(uint8(s.Type))
			w.f32(s.Confidence)
		}
	case RespVectorSearchOk:
		hits := resp.VectorSearch.Hits
		w.u32(uint32(len(hits)))
		for _, h := range hits {
			w.str(h.ConceptId)
			w.f32(h.Similarity)
		}
	case RespReasonOk:
		rr := resp.Reason
		w.boolean(rr.Confident)
		w.str(rr.AnswerId)
		w.f32(rr.Score)
		w.str(rr.Explanation)
	case RespGetStatsOk:
		w.u64(resp.GetStats.ConceptCount)
	case RespHealthCheckOk, RespFlushOk:
		// no fields
	case RespError:
		w.str(resp.Error.Message)
	}
	return w.b
}

// DecodeResponse parses a wire payload into a Response, used by the test
// suite and any future client-side implementation.
func DecodeResponse(payload []byte) (*Response, error) {
	r := newReader(payload)
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	resp := &Response{Kind: ResponseKind(kind)}

	switch resp.Kind {
	case RespLearnConceptV2Ok:
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		resp.LearnConceptV2 = &LearnConceptV2Response{ConceptId: id}
	case RespLearnBatchOk:
		ids, err := r.strs()
		if err != nil {
			return nil, err
		}
		resp.LearnBatch = &LearnBatchResponse{ConceptIds: ids}
	case RespQueryConceptOk:
		found, err := r.boolean()
		if err != nil {
			return nil, err
		}
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		content, err := r.str()
		if err != nil {
			return nil, err
		}
		strength, err := r.f32()
		if err != nil {
			return nil, err
		}
		confidence, err := r.f32()
		if err != nil {
			return nil, err
		}
		resp.QueryConcept = &QueryConceptResponse{Found: found, ConceptId: id, Content: content, Strength: strength, Confidence: confidence}
	case RespGetNeighborsOk:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		edges := make([]NeighborEdge, n)
		for i := range edges {
			target, err := r.str()
			if err != nil {
				return nil, err
			}
			t, err := r.u8()
			if err != nil {
				return nil, err
			}
			conf, err := r.f32()
			if err != nil {
				return nil, err
			}
			edges[i] = NeighborEdge{Target: target, Type: types.AssociationType(t), Confidence: conf}
		}
		resp.GetNeighbors = &GetNeighborsResponse{Edges: edges}
	case RespGetAssociationOk:
		found, err := r.boolean()
		if err != nil {
			return nil, err
		}
		t, err := r.u8()
		if err != nil {
			return nil, err
		}
		conf, err := r.f32()
		if err != nil {
			return nil, err
		}
		weight, err := r.f32()
		if err != nil {
			return nil, err
		}
		resp.GetAssociation = &GetAssociationResponse{Found: found, Type: types.AssociationType(t), Confidence: conf, Weight: weight}
	case RespFindPathOk:
		found, err := r.boolean()
		if err != nil {
			return nil, err
		}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		steps := make([]PathStep, n)
		for i := range steps {
			id, err := r.str()
			if err != nil {
				return nil, err
			}
			t, err := r.u8()
			if err != nil {
				return nil, err
			}
			conf, err := r.f32()
			if err != nil {
				return nil, err
			}
			steps[i] = PathStep{ConceptId: id, Type: types.AssociationType(t), Confidence: conf}
		}
		resp.FindPath = &FindPathResponse{Found: found, Steps: steps}
	case RespVectorSearchOk:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		hits := make([]VectorSearchHit, n)
		for i := range hits {
			id, err := r.str()
			if err != nil {
				return nil, err
			}
			sim, err := r.f32()
			if err != nil {
				return nil, err
			}
			hits[i] = VectorSearchHit{ConceptId: id, Similarity: sim}
		}
		resp.VectorSearch = &VectorSearchResponse{Hits: hits}
	case RespReasonOk:
		confident, err := r.boolean()
		if err != nil {
			return nil, err
		}
		answerId, err := r.str()
		if err != nil {
			return nil, err
		}
		score, err := r.f32()
		if err != nil {
			return nil, err
		}
		explanation, err := r.str()
		if err != nil {
			return nil, err
		}
		resp.Reason = &ReasonResponse{Confident: confident, AnswerId: answerId, Score: score, Explanation: explanation}
	case RespGetStatsOk:
		count, err := r.u64()
		if err != nil {
			return nil, err
		}
		resp.GetStats = &GetStatsResponse{ConceptCount: count}
	case RespHealthCheckOk, RespFlushOk:
		// no fields
	case RespError:
		msg, err := r.str()
		if err != nil {
			return nil, err
		}
		resp.Error = &ErrorResponse{Message: msg}
	default:
		return nil, errorsx.Newf(errorsx.InvalidRequest, "unknown response kind %d", kind)
	}
	return resp, nil
}
