// Package embedding talks to the external embedding service that turns
// learned content into fixed-dimension vectors. The HTTPClient
// dependency-injection shape is grounded on the pack's own HTTP client
// convention (evalgo-org-eve's hr.MocoClient: an interface wrapping
// http.Client.Do so tests can inject a fake transport instead of a real
// server). No embedding-service SDK exists anywhere in the retrieved pack,
// so the wire contract here (POST JSON, receive a JSON vector) is this
// engine's own, kept deliberately small.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sutra-memory/engine/internal/errorsx"
	"github.com/sutra-memory/engine/pkg/metrics"
)

// HTTPClient is satisfied by *http.Client; tests inject a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the embedding service, guarded by a CircuitBreaker so a
// sick embedding service degrades learn_concept to "store without a
// vector" instead of hanging every caller (spec.md §4.6: "embedding
// failures are non-fatal by default").
type Client struct {
	baseURL    string
	dimension  int
	httpClient HTTPClient
	timeout    time.Duration
	breaker    *CircuitBreaker
	reg        *metrics.Registry
}

// New creates a Client. reg may be nil in tests.
func New(baseURL string, dimension int, timeout time.Duration, breakerThreshold int, breakerCooldown time.Duration, reg *metrics.Registry) *Client {
	return &Client{
		baseURL:    baseURL,
		dimension:  dimension,
		httpClient: http.DefaultClient,
		timeout:    timeout,
		breaker:    NewCircuitBreaker(breakerThreshold, breakerCooldown, reg),
		reg:        reg,
	}
}

// WithHTTPClient overrides the transport, for tests.
func (c *Client) WithHTTPClient(h HTTPClient) *Client {
	c.httpClient = h
	return c
}

type embedRequest struct {
	Content string `json:"content"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed requests a vector for content. Returns a ServiceUnavailable-kinded
// error (via errorsx) if the circuit breaker is open or the call fails;
// callers treat this as non-fatal per spec.md §4.6 unless strict embedding
// was requested.
func (c *Client) Embed(ctx context.Context, content string) ([]float32, error) {
	if !c.breaker.Allow() {
		if c.reg != nil {
			c.reg.EmbeddingFailures.Inc()
		}
		return nil, errorsx.New(errorsx.ServiceUnavailable, "embedding circuit breaker is open")
	}

	vector, err := c.doEmbed(ctx, content)
	if err != nil {
		c.breaker.RecordFailure()
		if c.reg != nil {
			c.reg.EmbeddingFailures.Inc()
		}
		return nil, err
	}
	c.breaker.RecordSuccess()

	if len(vector) != c.dimension {
		return nil, errorsx.Newf(errorsx.DimensionMismatch, "embedding service returned %d dimensions, expected %d", len(vector), c.dimension)
	}
	return vector, nil
}

func (c *Client) doEmbed(ctx context.Context, content string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Content: content})
	if err != nil {
		return nil, errorsx.Wrap(errorsx.InvalidRequest, err, "encode embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(errorsx.InvalidRequest, err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.ServiceUnavailable, err, "call embedding service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorsx.Newf(errorsx.ServiceUnavailable, "embedding service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorsx.Wrap(errorsx.ServiceUnavailable, err, "read embedding response")
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errorsx.Wrap(errorsx.ServiceUnavailable, err, "decode embedding response")
	}
	return out.Vector, nil
}
