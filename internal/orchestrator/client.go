package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/chat"
	"github.com/lexiqai/llm-gateway/internal/endpoint"
	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/resilience"
)

const (
	completionsPath = "/v1/chat/completions"
	maxErrorBody    = 1024
)

// streamClient opens completion streams. Opening is retried and guarded by a
// breaker per endpoint; once a body is returned nothing is retried.
type streamClient struct {
	httpClient   *http.Client
	retry        *resilience.RetryConfig
	maxFailures  int
	resetTimeout time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

func newStreamClient(httpClient *http.Client, retry *resilience.RetryConfig, maxFailures int, resetTimeout time.Duration, logger zerolog.Logger) *streamClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &streamClient{
		httpClient:   httpClient,
		retry:        retry,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		breakers:     make(map[string]*resilience.CircuitBreaker),
	}
}

// buildRequest serializes one round. The model id is sent only for model
// endpoints and max_tokens only when positive.
func buildRequest(ep endpoint.Endpoint, messages []chat.Message, temperature float64, maxTokens int) chat.CompletionRequest {
	req := chat.CompletionRequest{
		Messages:      chat.ToWire(messages),
		Temperature:   temperature,
		Stream:        true,
		StreamOptions: &chat.StreamOptions{IncludeUsage: true},
	}
	if !ep.IsCustomService() {
		req.Model = ep.ModelID
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	return req
}

func (c *streamClient) breaker(ep endpoint.Endpoint) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[ep.ID]
	if !ok {
		cb = resilience.NewCircuitBreaker(ep.ID, c.maxFailures, c.resetTimeout)
		cb.OnStateChange(func(name string, state resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(state))
			c.logger.Warn().Str("endpoint_id", name).Str("state", state.String()).Msg("Circuit breaker state changed")
		})
		c.breakers[ep.ID] = cb
	}
	return cb
}

// CircuitStatus reports the breaker guarding one endpoint
type CircuitStatus struct {
	EndpointID  string  `json:"endpoint_id"`
	State       string  `json:"state"`
	Requests    int64   `json:"requests"`
	Failures    int64   `json:"failures"`
	FailureRate float64 `json:"failure_rate"`
}

// circuits lists the breakers created so far, sorted by endpoint id
func (c *streamClient) circuits() []CircuitStatus {
	c.mu.Lock()
	breakers := make([]*resilience.CircuitBreaker, 0, len(c.breakers))
	for _, cb := range c.breakers {
		breakers = append(breakers, cb)
	}
	c.mu.Unlock()

	out := make([]CircuitStatus, 0, len(breakers))
	for _, cb := range breakers {
		state, requests, failures, rate := cb.GetStats()
		out = append(out, CircuitStatus{
			EndpointID:  cb.Name(),
			State:       state.String(),
			Requests:    requests,
			Failures:    failures,
			FailureRate: rate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndpointID < out[j].EndpointID })
	return out
}

// resetCircuit closes the breaker for endpointID. It reports false when no
// request has reached that endpoint yet.
func (c *streamClient) resetCircuit(endpointID string) bool {
	c.mu.Lock()
	cb, ok := c.breakers[endpointID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	cb.Reset()
	c.logger.Info().Str("endpoint_id", endpointID).Msg("Circuit breaker reset")
	return true
}

// open POSTs the request and returns the SSE body. Every failure is a
// *StreamTransportError.
func (c *streamClient) open(ctx context.Context, ep endpoint.Endpoint, req chat.CompletionRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &StreamTransportError{Endpoint: ep.ID, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	cb := c.breaker(ep)
	if !cb.Allow() {
		return nil, &StreamTransportError{Endpoint: ep.ID, Err: resilience.ErrCircuitOpen}
	}

	var stream io.ReadCloser
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		var openErr error
		stream, openErr = c.post(ctx, ep, body)
		if openErr != nil {
			c.logger.Debug().Err(openErr).Str("endpoint_id", ep.ID).Msg("Completion request failed")
		}
		return openErr
	}, c.retry, resilience.IsRetryableNetworkError)

	// A caller walking away says nothing about the backend
	if ctx.Err() == nil || err == nil {
		cb.RecordResult(err == nil)
		if err != nil {
			observability.IncrementCircuitBreakerFailures(ep.ID)
		}
	}

	if err != nil {
		transportErr := &StreamTransportError{Endpoint: ep.ID, Err: err}
		var statusErr *resilience.HTTPStatusError
		if errors.As(err, &statusErr) {
			transportErr.StatusCode = statusErr.StatusCode
		}
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			transportErr.Err = errors.Join(ctx.Err(), err)
		}
		return nil, transportErr
	}
	return stream, nil
}

func (c *streamClient) post(ctx context.Context, ep endpoint.Endpoint, body []byte) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if ep.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &resilience.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	return resp.Body, nil
}
