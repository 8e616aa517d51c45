package wsclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSessionToken = "session-token-123"

const invalidTokenResponse = `{"metadata":{"status":[{"exception":{"details":"Invalid token"}}]}}`

// writeHMACKey writes a shared secret to a temp file and returns its path.
func writeHMACKey(t *testing.T) (string, []byte) {
	t.Helper()
	secret := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	path := filepath.Join(t.TempDir(), "hmac.key")
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		t.Fatalf("write hmac key: %v", err)
	}
	return path, secret
}

// writeRSAKey writes a PKCS#1 private key and its PKIX public key to temp files.
func writeRSAKey(t *testing.T) (privPath, pubPath string, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	dir := t.TempDir()

	privPath = filepath.Join(dir, "private.pem")
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPath = filepath.Join(dir, "public.pem")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}
	return privPath, pubPath, key
}

// captured is what the mock service saw of the last request.
type captured struct {
	mu       sync.Mutex
	Method   string
	Path     string
	RawQuery string
	Body     []byte
	Header   http.Header
	Calls    int
}

func (c *captured) snapshot() captured {
	c.mu.Lock()
	defer c.mu.Unlock()
	return captured{
		Method:   c.Method,
		Path:     c.Path,
		RawQuery: c.RawQuery,
		Body:     append([]byte(nil), c.Body...),
		Header:   c.Header.Clone(),
		Calls:    c.Calls,
	}
}

// newMockService starts a REST service answering every route with status and body.
func newMockService(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	engine := gin.New()
	engine.Any("/*path", func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		seen.mu.Lock()
		seen.Method = c.Request.Method
		seen.Path = c.Request.URL.Path
		seen.RawQuery = c.Request.URL.RawQuery
		seen.Body = raw
		seen.Header = c.Request.Header.Clone()
		seen.Calls++
		seen.mu.Unlock()

		c.Data(status, "application/json", []byte(body))
	})
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return server, seen
}

// closedURL returns the address of a server that no longer accepts connections.
func closedURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

func newTestGateway(t *testing.T, baseURL string) *Gateway {
	t.Helper()
	gw, err := NewGateway(GatewayConfig{
		BaseURL:     baseURL + "/rest/",
		ServiceName: "experiment",
	})
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw
}
