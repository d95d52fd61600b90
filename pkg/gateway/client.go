package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
)

const (
	defaultTimeout      = 30 * time.Second
	correlationIDHeader = "X-Correlation-Id"
)

// Request describes one call to the upstream aggregator.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Response is the raw upstream answer.
type Response struct {
	Status int
	Body   []byte
}

// Decode parses the response body, classifying parse failures as DECODE.
func (r *Response) Decode(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return newError(ErrKindDecode, r.Status, err)
	}
	return nil
}

// Client issues single requests to the upstream aggregator, attaching the
// bearer credential and a per-request correlation id.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	clk     clock.Clock
	logg    *logger.Logger
	metrics *metrics.GatewayMetrics
	timeout time.Duration
}

// ClientParams configure the gateway client.
type ClientParams struct {
	Config  config.SocialConfig
	Clock   clock.Clock
	Logger  *logger.Logger
	Metrics *metrics.GatewayMetrics
	HTTP    *http.Client
}

// NewClient builds a gateway client.
func NewClient(params ClientParams) (*Client, error) {
	if params.Config.APIURL == "" {
		return nil, fmt.Errorf("upstream base url is required")
	}
	httpClient := params.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.New()
	}
	timeout := params.Config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(params.Config.APIURL, "/"),
		apiKey:  params.Config.APIKey,
		http:    httpClient,
		clk:     clk,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
	}, nil
}

// Do issues the request and classifies failures. A missing response is
// NETWORK, 5xx is SERVER, 429 is THROTTLED, any other 4xx is CLIENT.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	correlationID := uuid.NewString()
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, newError(ErrKindDecode, 0, err)
		}
		body = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, target, body)
	if err != nil {
		return nil, newError(ErrKindNetwork, 0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set(correlationIDHeader, correlationID)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	logCtx := ctx
	if c.logg != nil {
		logCtx = c.logg.WithFields(ctx, map[string]any{
			"correlation_id": correlationID,
			"method":         req.Method,
			"path":           req.Path,
		})
		c.logg.Info(logCtx, "upstream request start")
	}

	start := c.clk.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := c.clk.Now().Sub(start)

	if err != nil {
		c.observe(req.Method, "network_error", elapsed)
		c.logEnd(logCtx, elapsed, 0, err)
		return nil, newError(ErrKindNetwork, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(req.Method, "network_error", elapsed)
		c.logEnd(logCtx, elapsed, resp.StatusCode, err)
		return nil, newError(ErrKindNetwork, resp.StatusCode, err)
	}

	c.logEnd(logCtx, elapsed, resp.StatusCode, nil)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.observe(req.Method, "throttled", elapsed)
		return nil, newError(ErrKindThrottled, resp.StatusCode, nil)
	case resp.StatusCode >= http.StatusInternalServerError:
		c.observe(req.Method, "server_error", elapsed)
		return nil, newError(ErrKindServer, resp.StatusCode, nil)
	case resp.StatusCode >= http.StatusBadRequest:
		c.observe(req.Method, "client_error", elapsed)
		return nil, newError(ErrKindClient, resp.StatusCode, nil)
	}

	c.observe(req.Method, "ok", elapsed)
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

// DoJSON issues the request and decodes the body into dest.
func (c *Client) DoJSON(ctx context.Context, req Request, dest any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(dest)
}

func (c *Client) observe(method, outcome string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(method, outcome, elapsed)
	}
}

func (c *Client) logEnd(ctx context.Context, elapsed time.Duration, status int, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"elapsed_ms": elapsed.Milliseconds(),
		"status":     status,
	})
	if err != nil {
		c.logg.Error(ctx, "upstream request failed", err)
		return
	}
	c.logg.Info(ctx, "upstream request end")
}
