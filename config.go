package wsclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultAccept                 = "application/json"
	defaultContentType            = "application/json"
	defaultConnectionErrorMessage = "Failed to connect to the web service"
	defaultHTTPTimeout            = 30 * time.Second
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// GatewayConfig describes one remote service.
type GatewayConfig struct {
	// BaseURL is the web service root, e.g. "http://localhost/webservice/rest/".
	BaseURL string
	// ServiceName is the path segment of the service, e.g. "experiment".
	ServiceName string
	// Accept is the default Accept header. Defaults to application/json.
	Accept string
	// ContentType is the default Content-Type header. Defaults to application/json.
	ContentType string
	// ConnectionErrorMessage is returned as the message of connection failures.
	ConnectionErrorMessage string
	// HTTPTimeout bounds every exchange when HTTPClient is nil.
	HTTPTimeout time.Duration
	// HTTPClient overrides the client built from HTTPTimeout.
	HTTPClient *http.Client
	// Logger receives request and failure records. Defaults to slog.Default().
	Logger *slog.Logger
}

// normalize sets default values for optional fields.
func (c *GatewayConfig) normalize() {
	if c.Accept == "" {
		c.Accept = defaultAccept
	}
	if c.ContentType == "" {
		c.ContentType = defaultContentType
	}
	if c.ConnectionErrorMessage == "" {
		c.ConnectionErrorMessage = defaultConnectionErrorMessage
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// validate ensures the gateway configuration is usable and returns the parsed base URL.
func (c GatewayConfig) validate() (*url.URL, error) {
	if c.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", c.BaseURL)
	}
	return base, nil
}
