package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/staffops/internal/config"
)

// Gateway performs raw calls against the operations backend.
type Gateway interface {
	Request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error)
}

// Client is a resty-backed implementation of Gateway with typed helpers for
// every backend endpoint.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient builds a backend client using the provided configuration values.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetLogger(logger.Sugar())

	return &Client{
		httpClient: restyClient,
		logger:     logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Request sends a single attempt to endpoint and returns the JSON body verbatim.
// An empty method means GET. Non-nil bodies are JSON encoded.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	if method == "" {
		method = http.MethodGet
	}

	req := c.httpClient.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, &APIError{Kind: NetworkError, Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	raw := resp.Body()

	c.logger.Debug("backend request completed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		message := fmt.Sprintf("Request failed with status %d", status)
		var payload errorBody
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			message = payload.Error
		}
		return nil, &APIError{Kind: ServerError, Status: status, Message: message}
	}

	if !json.Valid(raw) {
		return nil, &APIError{
			Kind:    NetworkError,
			Status:  status,
			Message: "malformed JSON response",
		}
	}

	return json.RawMessage(raw), nil
}

// enveloped is satisfied by every response type embedding models.Envelope.
type enveloped interface {
	OK() bool
	Failure() string
}

// call runs Request and decodes the result into out. A success:false envelope is
// reported as a ServerError, with out still populated so callers can inspect it.
func (c *Client) call(ctx context.Context, method, endpoint string, body any, out enveloped) error {
	raw, err := c.Request(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Kind: NetworkError, Message: fmt.Sprintf("decode %s response: %v", endpoint, err), Err: err}
	}

	if !out.OK() {
		return &APIError{Kind: ServerError, Status: http.StatusOK, Message: out.Failure()}
	}

	return nil
}
