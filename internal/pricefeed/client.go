package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.coinpaprika.com"

type tickerResponse struct {
	Id     string `json:"id"`
	Symbol string `json:"symbol"`
	Quotes struct {
		USD struct {
			Price decimal.Decimal `json:"price"`
		} `json:"USD"`
	} `json:"quotes"`
}

// Client reads spot prices from the Coinpaprika ticker API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FetchUSDPrice returns the USD price of one coin, e.g. "btc-bitcoin"
func (c *Client) FetchUSDPrice(ctx context.Context, coinId string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v1/tickers/%s", c.baseURL, coinId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to build ticker request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker request for %s failed: %w", coinId, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("ticker %s returned %d: %s", coinId, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return decimal.Zero, fmt.Errorf("unable to decode ticker %s: %w", coinId, err)
	}
	price := ticker.Quotes.USD.Price
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("ticker %s has no usable USD price", coinId)
	}
	return price, nil
}
