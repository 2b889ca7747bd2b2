package evaluator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"option-screener-go/internal/config"
	"option-screener-go/internal/models"
)

const (
	evaluatePath    = "/api/evaluate-trades"
	requestIDHeader = "X-Request-ID"
)

// Request is the body of an evaluation call: the whole roster and the set thresholds.
type Request struct {
	Tolerances models.Tolerances   `json:"tolerances"`
	Trades     []models.TradeInput `json:"trades"`
}

// Client scores a roster against the thresholds.
type Client interface {
	Evaluate(ctx context.Context, req Request) ([]models.ResultRow, error)
}

// StatusError is returned when the evaluator answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("evaluator returned %s: %s", e.Status, strings.TrimSpace(e.Body))
}

// RestClient is a client for the evaluation service.
// It implements the Client interface.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure RestClient implements the interface
var _ Client = (*RestClient)(nil)

// NewRestClient creates a new evaluation client.
func NewRestClient(cfg *config.Evaluator, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json")

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger.Named("evaluator"),
		limiter: limiter,
	}
}

// Evaluate posts the roster and returns the scored rows in the order the service sent them.
// Failures are never retried here; the caller decides whether to try again.
func (c *RestClient) Evaluate(ctx context.Context, body Request) ([]models.ResultRow, error) {
	if body.Trades == nil {
		body.Trades = []models.TradeInput{}
	}

	var rows []models.ResultRow
	req := c.client.R().
		SetBody(body).
		SetResult(&rows).
		ForceContentType("application/json")

	if _, err := c.doRequest(ctx, http.MethodPost, evaluatePath, req); err != nil {
		c.logger.Error("Failed to evaluate trades", zap.Int("trades", len(body.Trades)), zap.Error(err))
		return nil, fmt.Errorf("failed to evaluate trades: %w", err)
	}

	c.logger.Info("Evaluated trades", zap.Int("trades", len(body.Trades)), zap.Int("results", len(rows)))
	return rows, nil
}

// doRequest waits for the rate limiter, tags the request and executes it once.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	requestID := uuid.NewString()
	req.SetContext(ctx).SetHeader(requestIDHeader, requestID)

	c.logger.Debug("Executing request",
		zap.String("method", method),
		zap.String("url", c.client.BaseURL+url),
		zap.String("request_id", requestID),
	)
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       resp.String(),
		}
	}

	return resp, nil
}
