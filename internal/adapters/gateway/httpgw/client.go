package httpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/observability/metrics"
	"golang-wa-broadcast/internal/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBackoff     = 5 * time.Second
	defaultCallTimeout = 10 * time.Second
	defaultSendTimeout = 30 * time.Second
)

// Config controls how the gateway client behaves.
type Config struct {
	BaseURL     string
	Backoff     time.Duration // Wait before the single retry of a batch
	CallTimeout time.Duration // Deadline for status, QR and disconnect calls
	HTTPClient  *http.Client
	Logger      *slog.Logger
	Metrics     *metrics.DispatchMetrics
}

// Client implements ports.Gateway over the gateway's JSON HTTP API.
type Client struct {
	baseURL     string
	backoff     time.Duration
	callTimeout time.Duration
	httpClient  *http.Client
	log         *slog.Logger
	metrics     *metrics.DispatchMetrics
	tracer      trace.Tracer
}

var _ ports.Gateway = (*Client)(nil)

// New creates a Client targeting the given base URL.
func New(cfg Config) *Client {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Deadlines are applied per attempt through the request context.
		httpClient = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		backoff:     backoff,
		callTimeout: callTimeout,
		httpClient:  httpClient,
		log:         log,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer("golang-wa-broadcast/httpgw"),
	}
}

// Send posts one batch to the send or check endpoint. A timeout or a
// transport failure before any response is retried exactly once after the
// backoff; every other failure is final for the batch.
func (c *Client) Send(ctx context.Context, req ports.BatchRequest) domain.BatchResult {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "gateway.send_batch", trace.WithAttributes(
		attribute.String("mode", string(req.Mode)),
		attribute.Int("batch.size", len(req.Batch)),
	))
	defer span.End()

	res := c.send(ctx, req)

	result := "ok"
	switch {
	case res.Err != nil:
		result = "failed"
		span.SetStatus(codes.Error, res.Err.Error())
	case res.DecodeErr != nil:
		result = "decode_error"
	}
	span.SetAttributes(attribute.Int("attempts", res.Attempts), attribute.String("result", result))
	c.metrics.ObserveBatch(req.Mode, result, time.Since(start).Seconds())
	return res
}

func (c *Client) send(ctx context.Context, req ports.BatchRequest) domain.BatchResult {
	path := pathSend
	if req.Mode.IsVerify() {
		path = pathCheck
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	body, err := encodeBatch(req.Batch, req.Extra)
	if err != nil {
		return domain.BatchResult{Err: fmt.Errorf("marshal batch: %w", err)}
	}

	var (
		data     []byte
		attempts int
	)
	for {
		attempts++
		data, err = c.do(ctx, http.MethodPost, path, body, timeout)
		if err == nil || attempts > 1 || !domain.IsRetryable(err) {
			break
		}

		var te *domain.TransportError
		errors.As(err, &te)
		c.metrics.ObserveRetry(req.Mode, te.Kind)
		c.log.Warn("gateway batch failed, retrying",
			"mode", req.Mode, "size", len(req.Batch), "wait", c.backoff, "err", err)
		if req.OnRetry != nil {
			req.OnRetry(err, c.backoff)
		}
		if sleepErr := sleep(ctx, c.backoff); sleepErr != nil {
			err = sleepErr
			break
		}
	}
	if err != nil {
		return domain.BatchResult{Attempts: attempts, Err: err}
	}

	outcomes, env, decodeErr := decodeResults(req.Mode, data)
	if decodeErr != nil {
		c.log.Warn("unrecognised gateway response", "mode", req.Mode, "err", decodeErr)
		return domain.BatchResult{Attempts: attempts, DecodeErr: decodeErr}
	}
	if env != nil && env.TotalSent != nil && env.TotalFailed != nil {
		c.log.Debug("gateway batch tally", "sent", *env.TotalSent, "failed", *env.TotalFailed)
	}
	return domain.BatchResult{Attempts: attempts, Outcomes: outcomes}
}

// Status queries the gateway's connection state.
func (c *Client) Status(ctx context.Context) (ports.GatewayStatus, error) {
	data, err := c.do(ctx, http.MethodGet, pathStatus, nil, c.callTimeout)
	if err != nil {
		var re *domain.RemoteError
		if !errors.As(err, &re) {
			return ports.GatewayStatus{}, fmt.Errorf("gateway status: %w", err)
		}
		// A success:false body still answers the question; surface it as such.
		if re.StatusCode >= 200 && re.StatusCode < 300 {
			return ports.GatewayStatus{Success: false}, nil
		}
		return ports.GatewayStatus{}, fmt.Errorf("gateway status: %w", err)
	}
	var sr statusResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return ports.GatewayStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return ports.GatewayStatus{Success: sr.Success, Connected: sr.Connected}, nil
}

// QR returns the pending pairing code, if any.
func (c *Client) QR(ctx context.Context) (ports.PairingCode, error) {
	data, err := c.do(ctx, http.MethodGet, pathQR, nil, c.callTimeout)
	if err != nil {
		return ports.PairingCode{}, fmt.Errorf("gateway qr: %w", err)
	}
	var qr qrResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return ports.PairingCode{}, fmt.Errorf("decode qr: %w", err)
	}
	if !qr.Success || qr.QR == "" {
		return ports.PairingCode{}, nil
	}
	return ports.PairingCode{Code: qr.QR, ExpiresIn: time.Duration(qr.ExpiresIn) * time.Millisecond}, nil
}

// Disconnect asks the gateway to drop its messaging session.
func (c *Client) Disconnect(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, pathDisconnect, []byte("{}"), c.callTimeout); err != nil {
		return fmt.Errorf("gateway disconnect: %w", err)
	}
	return nil
}

// do performs one attempt under its own deadline and classifies the failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte, timeout time.Duration) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteError(resp.StatusCode, data)
	}
	if msg, failed := bodyFailure(data); failed {
		return nil, &domain.RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	return data, nil
}

// classify maps a failure to obtain a response onto the error taxonomy. When
// the caller's own context is done the operation was abandoned and its error
// is returned as is, which is not retryable.
func classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.TransportError{Kind: domain.TransportTimeout, Err: err}
	}
	return &domain.TransportError{Kind: domain.TransportReset, Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
