// Package wsclient talks to a token-authenticated REST web service: it signs JWTs
// from caller-supplied claims, sends bearer-authenticated GET/POST/PUT requests and
// classifies the outcome.
package wsclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Gateway issues authenticated calls against one service of the web service.
// It is immutable after construction and safe for concurrent use.
type Gateway struct {
	cfg     GatewayConfig
	base    *url.URL
	client  *http.Client
	headers http.Header
	logger  *slog.Logger
}

// Response is a successful (2xx) answer.
type Response struct {
	Status    int
	Header    http.Header
	Body      json.RawMessage
	RequestID string
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Value returns the decoded body, or nil for an empty body.
func (r *Response) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// invalidTokenBody matches {"metadata":{"status":[{"exception":{"details":"..."}}]}}.
type invalidTokenBody struct {
	Metadata struct {
		Status []struct {
			Exception struct {
				Details string `json:"details"`
			} `json:"exception"`
		} `json:"status"`
	} `json:"metadata"`
}

// NewGateway builds a gateway bound to cfg.BaseURL with the default Accept,
// Content-Type and an empty bearer Authorization header.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	base, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	cfg.normalize()

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.HTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}

	headers := make(http.Header, 3)
	headers.Set("Accept", cfg.Accept)
	headers.Set("Content-Type", cfg.ContentType)
	headers.Set("Authorization", "Bearer ")

	return &Gateway{
		cfg:     cfg,
		base:    base,
		client:  client,
		headers: headers,
		logger:  cfg.Logger.With(slog.String("service", cfg.ServiceName)),
	}, nil
}

// BasePath returns the configured base URL.
func (g *Gateway) BasePath() string {
	return g.cfg.BaseURL
}

// ServiceName returns the service path segment prefixed to every call.
func (g *Gateway) ServiceName() string {
	return g.cfg.ServiceName
}

// Get sends GET serviceName+subService with the encoded params as query string.
// body, when non-nil, is sent as JSON even though the method is GET.
func (g *Gateway) Get(ctx context.Context, sessionToken, subService string, params *Params, body any) (*Response, error) {
	return g.do(ctx, http.MethodGet, sessionToken, g.cfg.ServiceName+subService+params.Encode(), body)
}

// Post sends body as JSON to serviceName+subService.
func (g *Gateway) Post(ctx context.Context, sessionToken, subService string, body any) (*Response, error) {
	return g.do(ctx, http.MethodPost, sessionToken, g.cfg.ServiceName+subService, body)
}

// Put sends body as JSON to serviceName+subService. Idempotence is up to the server.
func (g *Gateway) Put(ctx context.Context, sessionToken, subService string, body any) (*Response, error) {
	return g.do(ctx, http.MethodPut, sessionToken, g.cfg.ServiceName+subService, body)
}

func (g *Gateway) do(ctx context.Context, method, sessionToken, target string, body any) (*Response, error) {
	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	log := g.logger.With(
		slog.String("method", method),
		slog.String("path", target),
		slog.String("request_id", requestID),
	)

	var reader io.Reader
	if body != nil {
		payload, err := encodeJSON(body)
		if err != nil {
			return nil, g.fail(log, newOtherError(ErrCodeEncodeBody, 0, nil, err))
		}
		reader = bytes.NewReader(payload)
	}

	ref, err := url.Parse(target)
	if err != nil {
		return nil, g.fail(log, newOtherError(ErrCodeRequestFailed, 0, nil, fmt.Errorf("parse path %q: %w", target, err)))
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base.ResolveReference(ref).String(), reader)
	if err != nil {
		return nil, g.fail(log, newOtherError(ErrCodeRequestFailed, 0, nil, err))
	}
	req.Header = g.headers.Clone()
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	log.Debug("sending request", slog.String("url", req.URL.String()))
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.fail(log, g.classifyTransport(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, g.fail(log, g.classifyTransport(err))
	}
	log.Debug("received response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, g.fail(log, classifyStatus(resp.StatusCode, raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = nil
	} else if !json.Valid(raw) {
		return nil, g.fail(log, newOtherError(ErrCodeInvalidResponse, resp.StatusCode, raw, errors.New("response body is not JSON")))
	}

	return &Response{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      json.RawMessage(raw),
		RequestID: requestID,
	}, nil
}

func (g *Gateway) fail(log *slog.Logger, e *Error) error {
	log.Warn("request failed",
		slog.String("kind", string(e.Kind)),
		slog.String("code", string(e.Code)),
		slog.Int("status", e.Status),
		errAttr(e.Err),
	)
	return e
}

// classifyStatus maps a non-2xx answer. Only a 401 carrying the invalid-token
// exception is an authorization failure; everything else keeps status and body.
func classifyStatus(status int, body []byte) *Error {
	if status == http.StatusUnauthorized {
		var parsed invalidTokenBody
		if err := json.Unmarshal(body, &parsed); err == nil &&
			len(parsed.Metadata.Status) > 0 &&
			parsed.Metadata.Status[0].Exception.Details == invalidTokenDetails {
			e := newError(ErrCodeInvalidToken, nil)
			e.Status = status
			e.Body = body
			return e
		}
	}
	return newResponseError(status, body)
}

// classifyTransport maps client errors: unreachable servers and timeouts are connection
// failures, anything else is reported as a failed request with no body.
func (g *Gateway) classifyTransport(err error) *Error {
	if isConnectError(err) {
		e := newError(ErrCodeConnectionFailed, err)
		e.Message = g.cfg.ConnectionErrorMessage
		return e
	}
	return newOtherError(ErrCodeRequestFailed, 0, nil, err)
}

func isConnectError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
