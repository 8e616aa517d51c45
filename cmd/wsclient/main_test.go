package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests touch process environment and do not run in parallel.

func writeSecret(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret.key")
	require.NoError(t, os.WriteFile(path, []byte("cli-test-secret-cli-test-secret-cli-test-secret"), 0o600))
	return path
}

func TestRun_TokenAndVerify(t *testing.T) {
	key := writeSecret(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "token", "-alg", "HS256", "-key", key, "-iss", "Phis", "-sub", "me@example.org", "-claim", "role=admin"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	token := strings.TrimSpace(stdout.String())
	assert.Len(t, strings.Split(token, "."), 3)

	stdout.Reset()
	code = run([]string{"-env", "", "verify", "-alg", "hs256", "-key", key, token}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), `"iss": "Phis"`)
	assert.Contains(t, stdout.String(), `"role": "admin"`)
}

func TestRun_TokenFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "token", "-alg", "RS256", "-key", "/nonexistent.pem"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Signing key unreadable")
}

func TestRun_Get(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"data":[]}}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-env", "", "-base-url", server.URL + "/rest/", "-service", "experiment", "-token", "tok",
		"get", "-q", "lang=en", "-q", "empty=", "/item/123",
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "/rest/experiment/item/123", gotPath)
	assert.Equal(t, "lang=en", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Contains(t, stdout.String(), `"result"`)
}

func TestRun_PostSignsWithKey(t *testing.T) {
	key := writeSecret(t)
	var gotBody []byte
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-env", "", "-base-url", server.URL, "-service", "/ao",
		"post", "-d", `{"uri": "http://x/y"}`, "-alg", "HS256", "-key", key,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.JSONEq(t, `{"uri":"http://x/y"}`, string(gotBody))
	assert.Contains(t, string(gotBody), "http://x/y")
	assert.True(t, strings.HasPrefix(gotAuth, "Bearer ey"), gotAuth)
}

func TestRun_FailureExitCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"metadata":{"status":[{"exception":{"details":"Invalid token"}}]}}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "-base-url", server.URL, "-token", "expired", "put", "-d", "{}"}, &stdout, &stderr)
	assert.Equal(t, exitUnauthorized, code)
	assert.Contains(t, stderr.String(), `{"token":"Invalid token"}`)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	stderr.Reset()
	code = run([]string{"-env", "", "-base-url", closedURL, "-token", "tok", "-timeout", "2s", "get"}, &stdout, &stderr)
	assert.Equal(t, exitConnection, code)
	assert.Contains(t, stderr.String(), "Failed to connect to the web service")
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitFailure, run([]string{"-env", ""}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: wsclient")

	stderr.Reset()
	assert.Equal(t, exitFailure, run([]string{"-env", "", "delete"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "delete"`)
}

func TestLoadConfig(t *testing.T) {
	for _, key := range []string{"WSCLIENT_JWT_ISSUER", "WSCLIENT_TIMEOUT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("WSCLIENT_SERVICE", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "WSCLIENT_JWT_ISSUER=Phis\nWSCLIENT_SERVICE=from-file\nWSCLIENT_TIMEOUT=5s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Phis", cfg.Issuer)
	assert.Equal(t, "from-env", cfg.Service)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "RS256", cfg.Algorithm)
	assert.Equal(t, 20*time.Minute, cfg.TTL)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestConfigNormalize(t *testing.T) {
	cfg := config{}
	cfg.normalize()
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	cfg = config{Timeout: -time.Second}
	cfg.normalize()
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	cfg = config{Timeout: 2 * time.Second}
	cfg.normalize()
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestRun_ZeroTimeoutUsesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(5500 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-env", "", "-base-url", server.URL, "-token", "tok", "-timeout", "0", "get"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), `"ok": true`)
}

func TestRun_VerifyRejectsForeignToken(t *testing.T) {
	signer := writeSecret(t)
	other := filepath.Join(t.TempDir(), "other.key")
	require.NoError(t, os.WriteFile(other, []byte("a-different-secret-a-different-secret"), 0o600))

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitOK, run([]string{"-env", "", "token", "-alg", "HS256", "-key", signer}, &stdout, &stderr), stderr.String())
	token := strings.TrimSpace(stdout.String())

	stdout.Reset()
	code := run([]string{"-env", "", "verify", "-alg", "HS256", "-key", other, token}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Token rejected")
	assert.NotContains(t, stderr.String(), "Invalid token")
}

func TestPairs(t *testing.T) {
	var p pairs
	require.NoError(t, p.Set("a=1"))
	require.NoError(t, p.Set("b=x=y"))
	assert.Error(t, p.Set("novalue"))

	got := map[string]string{}
	p.each(func(k, v string) { got[k] = v })
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, got)
	assert.Equal(t, "a=1,b=x=y", p.String())
}
