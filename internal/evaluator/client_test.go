package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"option-screener-go/internal/config"
	"option-screener-go/internal/models"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestEvaluate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		minROI := 0.15
		var received Request
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/evaluate-trades", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[{"symbol":"AAPL","score":72.5,"suggestion":"Neutral","supportVariancePct":null,
				"breakdown":[{"key":"roi","label":"ROI","max":30,"earned":22.5}]}]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		rows, err := rc.Evaluate(context.Background(), Request{
			Tolerances: models.Tolerances{MinROI: &minROI},
			Trades:     []models.TradeInput{{Symbol: "AAPL", Type: "put", Strike: 150}},
		})

		// Assert
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "AAPL", rows[0].Symbol)
		assert.Equal(t, 72.5, rows[0].Score)
		assert.Nil(t, rows[0].SupportVariancePct)
		assert.Equal(t, 22.5, rows[0].EarnedTotal())
		require.NotNil(t, received.Tolerances.MinROI)
		assert.Equal(t, 0.15, *received.Tolerances.MinROI)
		assert.Nil(t, received.Tolerances.MaxDTE)
		assert.Equal(t, "AAPL", received.Trades[0].Symbol)
	})

	t.Run("OnlySetTolerancesSent", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var raw map[string]json.RawMessage
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			assert.JSONEq(t, `{}`, string(raw["tolerances"]))
			assert.JSONEq(t, `[]`, string(raw["trades"]))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		rows, err := rc.Evaluate(context.Background(), Request{})

		assert.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("APIError", func(t *testing.T) {
		// Arrange
		calls := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`trade 0: expirationDate before tradeDate`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		rows, err := rc.Evaluate(context.Background(), Request{})

		// Assert
		assert.Error(t, err)
		assert.Nil(t, rows)
		assert.Contains(t, err.Error(), "failed to evaluate trades")
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "expirationDate before tradeDate")
		assert.Equal(t, 1, calls, "failed evaluations are not retried")
	})

	t.Run("NetworkError", func(t *testing.T) {
		rc, server := setupTestServer(http.NotFoundHandler())
		server.Close()

		_, err := rc.Evaluate(context.Background(), Request{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "request failed")
		var statusErr *StatusError
		assert.False(t, errors.As(err, &statusErr))
	})
}

func TestNewRestClient(t *testing.T) {
	cfg := &config.Evaluator{BaseURL: "http://scorer:5000/", TimeoutSeconds: 10, RateLimit: 2, RateLimitBurst: 1}
	rc := NewRestClient(cfg, zap.NewNop())

	assert.NotNil(t, rc)
	assert.Equal(t, "http://scorer:5000", rc.client.BaseURL)
	assert.Equal(t, rate.Limit(2), rc.limiter.Limit())
	assert.Equal(t, 1, rc.limiter.Burst())
}
