package tools

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	gocache "github.com/patrickmn/go-cache"
)

const (
	BitcoinPriceToolName = "get_bitcoin_price"

	bitcoinCacheKey = "bitcoin:usd"
)

// BitcoinPriceTool reports the current BTC/USD price from CoinGecko
type BitcoinPriceTool struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
}

// NewBitcoinPriceTool creates the tool. Prices are cached for ttl; a
// non-positive ttl disables caching.
func NewBitcoinPriceTool(baseURL string, client *http.Client, ttl time.Duration) *BitcoinPriceTool {
	t := &BitcoinPriceTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  defaultClient(client),
	}
	if ttl > 0 {
		t.cache = gocache.New(ttl, 2*ttl)
	}
	return t
}

func (t *BitcoinPriceTool) Spec() mcp.Tool {
	return mcp.NewTool(BitcoinPriceToolName,
		mcp.WithDescription("Get the current price of Bitcoin in US dollars"),
	)
}

type simplePriceResponse map[string]map[string]float64

// Execute ignores its parameters
func (t *BitcoinPriceTool) Execute(ctx context.Context, _ []string) (string, error) {
	if t.cache != nil {
		if cached, ok := t.cache.Get(bitcoinCacheKey); ok {
			return cached.(string), nil
		}
	}

	var prices simplePriceResponse
	url := t.baseURL + "/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"
	if err := getJSON(ctx, t.client, url, &prices); err != nil {
		return "", fmt.Errorf("fetching bitcoin price: %w", err)
	}

	usd, ok := prices["bitcoin"]["usd"]
	if !ok {
		return "", fmt.Errorf("bitcoin price missing from response")
	}

	result := "$" + strconv.FormatFloat(usd, 'f', -1, 64)
	if t.cache != nil {
		t.cache.SetDefault(bitcoinCacheKey, result)
	}
	return result, nil
}
