package endpoint

import (
	"context"
	"time"
)

// Source is a backend whose models are discovered by listing
type Source struct {
	Name    string
	BaseURL string
}

// RefreshResult reports the outcome of refreshing one source
type RefreshResult struct {
	Source string `json:"source"`
	Models int    `json:"models"`
	Error  string `json:"error,omitempty"`
}

// RefreshAll refreshes each source in turn. A failing source does not stop
// the others.
func (r *Registry) RefreshAll(ctx context.Context, sources []Source) []RefreshResult {
	results := make([]RefreshResult, 0, len(sources))
	for _, src := range sources {
		n, err := r.RefreshFrom(ctx, src.BaseURL, src.Name)
		res := RefreshResult{Source: src.Name, Models: n}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// RunRefresh refreshes sources every interval until ctx is done
func (r *Registry) RunRefresh(ctx context.Context, sources []Source, interval time.Duration) {
	if interval <= 0 || len(sources) == 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshAll(ctx, sources)
		}
	}
}
