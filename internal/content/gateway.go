package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"didhub/internal/platform/config"
	"didhub/pkg/domain"
	dErrors "didhub/pkg/domain-errors"
)

var opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "didhub_content_op_duration_seconds",
	Help:    "Latency of content gateway operations including retries",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"op"})

// GatewayClient implements Store against the content network gateway over
// HTTP. The access credential is a bearer token from configuration; it is
// attached per request and never written into content.
type GatewayClient struct {
	baseURL    string
	credential string
	maxRetries uint64
	httpClient *http.Client
	logger     *slog.Logger
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *GatewayClient) {
		g.httpClient = c
	}
}

// NewGatewayClient builds a Store backed by the configured gateway.
func NewGatewayClient(cfg config.Gateway, logger *slog.Logger, opts ...GatewayOption) (*GatewayClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("content gateway base URL is required")
	}
	g := &GatewayClient{
		baseURL:    cfg.BaseURL,
		credential: cfg.JWT,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type putResponse struct {
	Address string `json:"address"`
}

// Put computes the payload's address locally, uploads it, and confirms the
// gateway agrees on the address. Re-uploading identical bytes is a no-op on
// the gateway side and returns the same address.
func (g *GatewayClient) Put(ctx context.Context, data []byte, opts ...PutOption) (domain.Address, error) {
	timer := prometheus.NewTimer(opDuration.WithLabelValues("put"))
	defer timer.ObserveDuration()

	addr, err := ComputeAddress(data)
	if err != nil {
		return "", err
	}
	options := applyOptions(opts)

	body, err := g.doRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/objects", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("X-Content-Address", addr.String())
		if options.label != "" {
			req.Header.Set("X-Object-Label", options.label)
		}
		return req, nil
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "uploading content object")
	}

	var resp putResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "decoding gateway response")
	}
	if resp.Address != addr.String() {
		return "", dErrors.Newf(dErrors.CodeInternal,
			"gateway disagrees on content address: computed %s, gateway returned %s", addr, resp.Address)
	}
	return addr, nil
}

// Get fetches a payload and verifies it hashes to the requested address.
func (g *GatewayClient) Get(ctx context.Context, addr domain.Address) ([]byte, error) {
	timer := prometheus.NewTimer(opDuration.WithLabelValues("get"))
	defer timer.ObserveDuration()

	data, err := g.doRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/objects/"+addr.String(), nil)
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetching content object")
	}
	if err := Verify(addr, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Unpin asks the gateway to release the object. The caller treats failure as
// a logged hint, never as an operation failure.
func (g *GatewayClient) Unpin(ctx context.Context, addr domain.Address) error {
	timer := prometheus.NewTimer(opDuration.WithLabelValues("unpin"))
	defer timer.ObserveDuration()

	_, err := g.doRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/pins/"+addr.String(), nil)
	})
	return err
}

// doRetry runs one gateway request with bounded exponential backoff.
// Transient failures (network errors, 429, 5xx) retry; definitive gateway
// answers (other 4xx) do not.
func (g *GatewayClient) doRetry(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}
		if g.credential != "" {
			req.Header.Set("Authorization", "Bearer "+g.credential)
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(dErrors.New(dErrors.CodeNotFound, "object not found on gateway"))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("gateway returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("gateway rejected request: %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), g.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		g.logger.Warn("retrying gateway call", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
