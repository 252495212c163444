package tools

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/config"
)

// NewDefaultRegistry wires the built-in tools from configuration
func NewDefaultRegistry(cfg *config.Config, client *http.Client, logger zerolog.Logger) *Registry {
	return NewRegistry(logger, cfg.ToolTimeout,
		NewBitcoinPriceTool(cfg.CoinGeckoBaseURL, client, cfg.PriceCacheTTL),
		NewWeatherTool(cfg.OpenWeatherMapBaseURL, cfg.OpenWeatherMapAPIKey, client),
		NewScrapeTool(client),
	)
}
