package endpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/resilience"
)

// Registry holds known endpoints keyed by id. Reads and refreshes may run
// concurrently; refresh only inserts or overwrites, it never evicts.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	apiKeys   map[string]string

	lister ModelLister
	retry  *resilience.RetryConfig
	logger zerolog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithSourceAPIKey sets the key used to list, and later call, models of a source
func WithSourceAPIKey(source, apiKey string) Option {
	return func(r *Registry) {
		if apiKey != "" {
			r.apiKeys[source] = apiKey
		}
	}
}

// WithRetry retries transient listing failures
func WithRetry(cfg *resilience.RetryConfig) Option {
	return func(r *Registry) {
		r.retry = cfg
	}
}

// NewRegistry creates an empty registry
func NewRegistry(lister ModelLister, logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		endpoints: make(map[string]Endpoint),
		apiKeys:   make(map[string]string),
		lister:    lister,
		retry:     &resilience.RetryConfig{MaxAttempts: 1},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put inserts or overwrites endpoints by id
func (r *Registry) Put(endpoints ...Endpoint) {
	r.mu.Lock()
	for _, e := range endpoints {
		if e.APIKey == "" {
			e.APIKey = r.apiKeys[e.Source]
		}
		r.endpoints[e.ID] = e
	}
	r.mu.Unlock()
	r.publishCounts()
}

// Resolve returns the endpoint registered under id
func (r *Registry) Resolve(id string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[id]
	if !ok {
		return Endpoint{}, &UnknownEndpointError{ID: id}
	}
	return e, nil
}

// RefreshFrom lists the models served at baseURL and upserts one endpoint
// per model under "{source}-{modelId}". On failure the error is logged and
// returned and the registry is left untouched.
func (r *Registry) RefreshFrom(ctx context.Context, baseURL, source string) (int, error) {
	logger := r.logger.With().Str("source", source).Str("base_url", baseURL).Logger()
	apiKey := r.apiKey(source)

	var ids []string
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		var listErr error
		ids, listErr = r.lister.ListModels(ctx, baseURL, apiKey)
		return listErr
	}, r.retry, resilience.IsRetryableNetworkError)

	observability.RecordEndpointRefresh(source, err == nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Model listing failed, keeping known endpoints")
		return 0, err
	}

	discovered := make([]Endpoint, 0, len(ids))
	for _, id := range ids {
		e := NewModelEndpoint(source, baseURL, id)
		e.APIKey = apiKey
		discovered = append(discovered, e)
	}
	r.Put(discovered...)

	logger.Info().Int("models", len(discovered)).Msg("Endpoints refreshed")
	return len(discovered), nil
}

func (r *Registry) apiKey(source string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.apiKeys[source]
}

// List returns the endpoints of one kind sorted by id
func (r *Registry) List(kind Kind) []Endpoint {
	return r.filter(func(e Endpoint) bool { return e.Kind == kind })
}

// ListBySource returns the endpoints tagged with source sorted by id
func (r *Registry) ListBySource(source string) []Endpoint {
	return r.filter(func(e Endpoint) bool { return e.Source == source })
}

// All returns every endpoint sorted by id
func (r *Registry) All() []Endpoint {
	return r.filter(func(Endpoint) bool { return true })
}

// Len returns the number of endpoints
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

func (r *Registry) filter(keep func(Endpoint) bool) []Endpoint {
	r.mu.RLock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) publishCounts() {
	counts := map[Kind]int{KindLocal: 0, KindRemote: 0, KindCustomService: 0}
	r.mu.RLock()
	for _, e := range r.endpoints {
		counts[e.Kind]++
	}
	r.mu.RUnlock()
	for kind, n := range counts {
		observability.SetEndpointCount(string(kind), n)
	}
}
