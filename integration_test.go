package wsclient

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWebServiceIntegration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("RUN_INTEGRATION_TESTS not set to true")
	}

	baseURL := strings.TrimSpace(os.Getenv("WSCLIENT_BASE_URL"))
	if baseURL == "" {
		t.Fatal("WSCLIENT_BASE_URL environment variable required")
	}
	service := os.Getenv("WSCLIENT_SERVICE")
	if service == "" {
		service = "experiments"
	}

	gw, err := NewGateway(GatewayConfig{
		BaseURL:     baseURL,
		ServiceName: service,
		HTTPTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// A made-up token must be rejected with the invalid-token shape.
	_, err = gw.Get(ctx, "not-a-session-token", "", NewParams().Set("page", 0).Set("pageSize", 1), nil)
	if !IsUnauthorized(err) {
		t.Fatalf("expected invalid token, got %v", err)
	}

	token := strings.TrimSpace(os.Getenv("WSCLIENT_SESSION_TOKEN"))
	if token == "" {
		return
	}
	resp, err := gw.Get(ctx, token, "", NewParams().Set("page", 0).Set("pageSize", 1), nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := resp.Value(); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
