package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestBody = `{
	"result": "success",
	"base_code": "USD",
	"time_last_update_unix": 1709251201,
	"time_last_update_utc": "Fri, 01 Mar 2024 00:00:01 +0000",
	"conversion_rates": {"USD": 1, "EUR": 0.92, "GBP": 0.78}
}`

const codesBody = `{
	"result": "success",
	"supported_codes": [["USD", "United States Dollar"], ["EUR", "Euro"], ["GBP", "Pound Sterling"]]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *ExchangeRateAPIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewExchangeRateAPIClient(server.URL, "test-key", server.Client(), logger.NewJSONLogger(nil, logger.ErrorLevel))
}

func TestFetchLatestRates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-key/latest/USD", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(latestBody))
	})

	table, err := client.FetchLatestRates(context.Background(), "usd")
	require.NoError(t, err)

	assert.Equal(t, "USD", table.Base)
	assert.Equal(t, 3, table.Len())
	eur, ok := table.Rate("EUR")
	assert.True(t, ok)
	assert.Equal(t, "0.92", eur.String())
	assert.Equal(t, "Fri, 01 Mar 2024 00:00:01 +0000", table.LastUpdatedText)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC), table.LastUpdated)
}

func TestFetchLatestRatesFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"Error result", http.StatusOK, `{"result":"error","error-type":"invalid-key"}`, "invalid-key"},
		{"Error result with 403", http.StatusForbidden, `{"result":"error","error-type":"inactive-account"}`, "inactive-account"},
		{"Server error", http.StatusBadGateway, `<html>bad gateway</html>`, "status 502"},
		{"Malformed body", http.StatusOK, `{"result":`, "failed to decode response"},
		{"No rates", http.StatusOK, `{"result":"success","conversion_rates":{}}`, "no conversion rates"},
		{"Wrong base", http.StatusOK, `{"result":"success","base_code":"EUR","conversion_rates":{"EUR":1}}`, "returned base EUR"},
		{"Negative rate", http.StatusOK, `{"result":"success","conversion_rates":{"EUR":-1}}`, "invalid rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			table, err := client.FetchLatestRates(context.Background(), "USD")
			assert.Nil(t, table)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entity.ErrNetworkFailure))
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestFetchLatestRatesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewExchangeRateAPIClient(server.URL, "", nil, logger.NewJSONLogger(nil, logger.ErrorLevel))
	server.Close()

	_, err := client.FetchLatestRates(context.Background(), "USD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrNetworkFailure))
	assert.Contains(t, err.Error(), "failed to execute request")
}

func TestFetchCurrencyCodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-key/codes", r.URL.Path)
		w.Write([]byte(codesBody))
	})

	catalog, err := client.FetchCurrencyCodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, 3)
	assert.Equal(t, "Pound Sterling", catalog.Name("GBP"))

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"quota-reached"}`))
	})
	_, err = failing.FetchCurrencyCodes(context.Background())
	assert.True(t, errors.Is(err, entity.ErrNetworkFailure))
}

func TestFetchRespectsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchLatestRates(ctx, "USD")
	assert.True(t, errors.Is(err, entity.ErrNetworkFailure))
}
