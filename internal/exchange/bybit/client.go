package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// category is fixed: the bot trades USDT-settled linear perpetuals only.
const category = "linear"

// Client wraps the Bybit v5 API client for linear futures trading.
type Client struct {
	httpClient  *bybit_api.Client
	instruments *instrumentCache
	testnet     bool
	demo        bool
}

// Config holds the credentials and environment selection for the client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment (paper trading)
}

// NewClient creates a new Bybit client. Demo takes precedence over Testnet
// when both are set.
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	c := &Client{
		httpClient: httpClient,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
	c.instruments = newInstrumentCache(c)
	return c
}

// Environment returns a string describing the selected endpoint.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
