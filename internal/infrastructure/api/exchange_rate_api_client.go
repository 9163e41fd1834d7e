// Package api implements the remote rate source over the exchangerate-api v6 HTTP contract
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/domain/service"
	"github.com/damon-houk/fx-converter/internal/infrastructure/config"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
)

const (
	latestPath = "/latest/"
	codesPath  = "/codes"

	resultSuccess = "success"

	// maxBodyBytes bounds how much of a response is read
	maxBodyBytes = 4 << 20
)

var _ service.RateSource = (*ExchangeRateAPIClient)(nil)

// ExchangeRateAPIClient fetches rate tables and currency codes
type ExchangeRateAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewExchangeRateAPIClient creates a client for apiURL. When apiKey is set it is
// appended as a path segment, as the v6 API expects.
func NewExchangeRateAPIClient(apiURL, apiKey string, httpClient *http.Client, log logger.Logger) *ExchangeRateAPIClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	baseURL := strings.TrimRight(apiURL, "/")
	if apiKey != "" {
		baseURL += "/" + url.PathEscape(apiKey)
	}

	return &ExchangeRateAPIClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.OrDefault(log).WithField("component", "exchange_rate_api"),
	}
}

// LatestResponse is the body of GET /latest/{base}
type LatestResponse struct {
	Result             string             `json:"result"`
	ErrorType          string             `json:"error-type,omitempty"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	TimeLastUpdateUTC  string             `json:"time_last_update_utc"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// CodesResponse is the body of GET /codes
type CodesResponse struct {
	Result         string     `json:"result"`
	ErrorType      string     `json:"error-type,omitempty"`
	SupportedCodes [][]string `json:"supported_codes"`
}

// FetchLatestRates retrieves the latest rates against base
func (c *ExchangeRateAPIClient) FetchLatestRates(ctx context.Context, base string) (*entity.RateTable, error) {
	base = entity.NormalizeCode(base)
	if base == "" {
		return nil, fmt.Errorf("%w: base currency is required", entity.ErrNetworkFailure)
	}

	var resp LatestResponse
	if err := c.getJSON(ctx, latestPath+url.PathEscape(base), &resp); err != nil {
		return nil, err
	}

	if resp.Result != resultSuccess {
		return nil, fmt.Errorf("%w: API returned result=%s error-type=%s", entity.ErrNetworkFailure, resp.Result, resp.ErrorType)
	}
	if len(resp.ConversionRates) == 0 {
		return nil, fmt.Errorf("%w: API returned no conversion rates", entity.ErrNetworkFailure)
	}

	if resp.BaseCode != "" && entity.NormalizeCode(resp.BaseCode) != base {
		return nil, fmt.Errorf("%w: API returned base %s, requested %s", entity.ErrNetworkFailure, resp.BaseCode, base)
	}

	table, err := entity.NewRateTable(base, resp.ConversionRates, parseUpdateTime(resp), resp.TimeLastUpdateUTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrNetworkFailure, err)
	}

	c.logger.Debug("Rate table fetched", map[string]interface{}{
		"base":         base,
		"currencies":   table.Len(),
		"last_updated": resp.TimeLastUpdateUTC,
	})

	return table, nil
}

// FetchCurrencyCodes retrieves the supported currency catalog
func (c *ExchangeRateAPIClient) FetchCurrencyCodes(ctx context.Context) (entity.CurrencyCatalog, error) {
	var resp CodesResponse
	if err := c.getJSON(ctx, codesPath, &resp); err != nil {
		return nil, err
	}

	if resp.Result != resultSuccess {
		return nil, fmt.Errorf("%w: API returned result=%s error-type=%s", entity.ErrNetworkFailure, resp.Result, resp.ErrorType)
	}

	catalog := entity.NewCurrencyCatalog(resp.SupportedCodes)

	c.logger.Debug("Currency codes fetched", map[string]interface{}{
		"currencies": len(catalog),
	})

	return catalog, nil
}

// getJSON issues a single GET; there is no retry
func (c *ExchangeRateAPIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", entity.ErrNetworkFailure, err)
	}
	req.Header.Add("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Exchange rate API request failed", map[string]interface{}{
			"url":   config.MaskAPIKeyInURL(reqURL),
			"error": err.Error(),
		})
		return fmt.Errorf("%w: failed to execute request: %v", entity.ErrNetworkFailure, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", entity.ErrNetworkFailure, err)
	}

	c.logger.Debug("Exchange rate API response", map[string]interface{}{
		"url":         config.MaskAPIKeyInURL(reqURL),
		"status":      resp.StatusCode,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: API returned status %d", entity.ErrNetworkFailure, resp.StatusCode)
		}
		return fmt.Errorf("%w: failed to decode response: %v", entity.ErrNetworkFailure, err)
	}

	// Error bodies from the API still carry result=error and are reported by the caller.
	if resp.StatusCode != http.StatusOK && resp.StatusCode/100 != 4 {
		return fmt.Errorf("%w: API returned status %d", entity.ErrNetworkFailure, resp.StatusCode)
	}

	return nil
}

func parseUpdateTime(resp LatestResponse) time.Time {
	if resp.TimeLastUpdateUTC != "" {
		if t, err := time.Parse(time.RFC1123Z, resp.TimeLastUpdateUTC); err == nil {
			return t.UTC()
		}
	}
	if resp.TimeLastUpdateUnix > 0 {
		return time.Unix(resp.TimeLastUpdateUnix, 0).UTC()
	}
	return time.Time{}
}
