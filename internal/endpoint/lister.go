package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lexiqai/llm-gateway/internal/resilience"
)

// ModelLister returns the model ids served at baseURL
type ModelLister interface {
	ListModels(ctx context.Context, baseURL, apiKey string) ([]string, error)
}

// OpenAILister calls GET {baseURL}/v1/models through the OpenAI SDK
type OpenAILister struct {
	httpClient *http.Client
}

// NewOpenAILister creates a lister sharing the given HTTP client
func NewOpenAILister(httpClient *http.Client) *OpenAILister {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAILister{httpClient: httpClient}
}

// ListModels implements ModelLister
func (l *OpenAILister) ListModels(ctx context.Context, baseURL, apiKey string) ([]string, error) {
	if apiKey == "" {
		// Local servers ignore the key but the SDK always sends one
		apiKey = "not-needed"
	}
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1/"),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(l.httpClient),
		option.WithMaxRetries(0),
	)

	page, err := client.Models.List(ctx)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("failed to list models at %s: %w", baseURL,
				&resilience.HTTPStatusError{StatusCode: apiErr.StatusCode})
		}
		if ctx.Err() == nil {
			// No response at all: the server may still be starting
			err = resilience.NewRetryableError(err)
		}
		return nil, fmt.Errorf("failed to list models at %s: %w", baseURL, err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
