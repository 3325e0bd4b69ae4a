package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/resilience"
)

// Rate is a single courier service quote.
type Rate struct {
	Service string      `json:"service"`
	Cost    promo.Money `json:"cost"`
	ETD     string      `json:"etd"`
	Courier string      `json:"courier,omitempty"`
}

// RateReq describes a shipping rate request.
type RateReq struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	WeightGrams int    `json:"weightGrams"`
	Courier     string `json:"courier"`
}

// Client quotes delivery rates from a courier aggregator.
type Client interface {
	Rates(ctx context.Context, req RateReq) ([]Rate, error)
}

// MockClient returns static rates and is useful for testing and development.
type MockClient struct{}

// Rates returns canned rates regardless of the request payload.
func (MockClient) Rates(ctx context.Context, req RateReq) ([]Rate, error) {
	_ = ctx
	return []Rate{
		{Service: "REG", Cost: 15000, ETD: "2-3", Courier: req.Courier},
		{Service: "YES", Cost: 30000, ETD: "1", Courier: req.Courier},
	}, nil
}

// HTTPRatesClient talks to the courier aggregator API over a
// retry-and-breaker wrapped HTTP client.
type HTTPRatesClient struct {
	BaseURL string
	APIKey  string
	HTTP    *resilience.HTTPClient
}

type ratesResponse struct {
	Rates []Rate `json:"rates"`
}

// Rates requests live quotes for the given route and weight.
func (c *HTTPRatesClient) Rates(ctx context.Context, req RateReq) ([]Rate, error) {
	if c.HTTP == nil {
		return nil, errors.New("shipping: rates client not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/rates", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.HTTP.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shipping: rates request failed with status %d", resp.StatusCode)
	}
	var decoded ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Rates, nil
}
