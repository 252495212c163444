package endpoint

import (
	"errors"
	"fmt"
	"strings"
)

// Kind partitions endpoints for listing and prompt handling
type Kind string

const (
	KindLocal         Kind = "local"
	KindRemote        Kind = "remote"
	KindCustomService Kind = "customService"
)

// SourceCustom tags endpoints created with NewCustomService
const SourceCustom = "custom"

// ParseKind accepts the canonical names case-insensitively
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return KindLocal, nil
	case "remote":
		return KindRemote, nil
	case "customservice", "custom":
		return KindCustomService, nil
	}
	return "", fmt.Errorf("unknown endpoint kind %q", s)
}

// Endpoint is a backend able to serve chat completions
type Endpoint struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"base_url"`
	Kind        Kind   `json:"kind"`
	ModelID     string `json:"model_id,omitempty"`
	Source      string `json:"source"`
	APIKey      string `json:"-"`
}

// IsCustomService reports whether the endpoint gets prompt augmentation
// and is called without a model id.
func (e Endpoint) IsCustomService() bool {
	return e.Kind == KindCustomService
}

// NewCustomService creates a custom-service endpoint
func NewCustomService(id, name, description, baseURL string) Endpoint {
	return Endpoint{
		ID:          id,
		DisplayName: name,
		Description: description,
		BaseURL:     trimBase(baseURL),
		Kind:        KindCustomService,
		Source:      SourceCustom,
	}
}

// NewModelEndpoint creates the endpoint for one model discovered at source
func NewModelEndpoint(source, baseURL, modelID string) Endpoint {
	return Endpoint{
		ID:          ModelEndpointID(source, modelID),
		DisplayName: modelID,
		Description: fmt.Sprintf("%s model: %s", source, modelID),
		BaseURL:     trimBase(baseURL),
		Kind:        KindForSource(source),
		ModelID:     modelID,
		Source:      source,
	}
}

// ModelEndpointID is the registry key for a discovered model
func ModelEndpointID(source, modelID string) string {
	return source + "-" + modelID
}

// KindForSource maps a discovery source to a kind. Custom services are never
// discovered, so every source other than local is remote.
func KindForSource(source string) Kind {
	if source == string(KindLocal) {
		return KindLocal
	}
	return KindRemote
}

func trimBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// ErrUnknownEndpoint is the sentinel behind every UnknownEndpointError
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// UnknownEndpointError is returned when an id is not registered
type UnknownEndpointError struct {
	ID string
}

func (e *UnknownEndpointError) Error() string {
	return fmt.Sprintf("unknown endpoint %q", e.ID)
}

func (e *UnknownEndpointError) Unwrap() error {
	return ErrUnknownEndpoint
}
