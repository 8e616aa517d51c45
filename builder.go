package wsclient

import (
	"fmt"
	"log/slog"

	"github.com/lestrrat-go/jwx/v2/jws"
	"golang.org/x/oauth2"
)

// TokenBuilder signs a claims payload into a compact JWT with a key read from disk.
// A builder is not safe for concurrent use.
type TokenBuilder struct {
	payload   Claims
	algorithm Algorithm
	keyPath   string
	logger    *slog.Logger

	jwt string
}

// BuilderOption customizes a TokenBuilder.
type BuilderOption func(*TokenBuilder)

// WithLogger sets the logger used to report swallowed Build failures.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *TokenBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewTokenBuilder constructs a builder. Nothing is read or validated until Sign or Build.
func NewTokenBuilder(payload Claims, algorithm Algorithm, keyPath string, opts ...BuilderOption) *TokenBuilder {
	b := &TokenBuilder{
		payload:   payload,
		algorithm: algorithm,
		keyPath:   keyPath,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Payload returns the claims signed by the next Sign or Build.
func (b *TokenBuilder) Payload() Claims {
	return b.payload
}

// SetPayload replaces the claims. The last built token is kept until the next successful Sign.
func (b *TokenBuilder) SetPayload(payload Claims) {
	b.payload = payload
}

// Algorithm returns the signing algorithm.
func (b *TokenBuilder) Algorithm() Algorithm {
	return b.algorithm
}

// SetAlgorithm changes the signing algorithm. It is validated on the next Sign.
func (b *TokenBuilder) SetAlgorithm(algorithm Algorithm) {
	b.algorithm = algorithm
}

// KeyPath returns the path of the signing key file.
func (b *TokenBuilder) KeyPath() string {
	return b.keyPath
}

// SetKeyPath changes the signing key file. It is read on the next Sign.
func (b *TokenBuilder) SetKeyPath(keyPath string) {
	b.keyPath = keyPath
}

// Sign reads the key, signs the payload and returns the compact token.
// Every call signs again; timestamps in the payload are not refreshed.
func (b *TokenBuilder) Sign() (string, error) {
	sigAlg, err := b.algorithm.jwa()
	if err != nil {
		return "", err
	}
	key, err := loadKey(b.algorithm, b.keyPath)
	if err != nil {
		return "", err
	}

	payload := b.payload
	if payload == nil {
		payload = Claims{}
	}
	body, err := encodeJSON(payload)
	if err != nil {
		return "", newError(ErrCodeSignFailed, fmt.Errorf("encode claims: %w", err))
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.TypeKey, "JWT"); err != nil {
		return "", newError(ErrCodeSignFailed, err)
	}
	signed, err := jws.Sign(body, jws.WithKey(sigAlg, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", newError(ErrCodeSignFailed, err)
	}

	b.jwt = string(signed)
	return b.jwt, nil
}

// Build signs the payload but never fails: on error it logs and returns the last
// token successfully built, which is "" if there was none. Callers must treat ""
// as a failure.
func (b *TokenBuilder) Build() string {
	if _, err := b.Sign(); err != nil {
		b.logger.Warn("jwt build failed",
			slog.String("algorithm", string(b.algorithm)),
			slog.String("key_path", b.keyPath),
			errAttr(err),
		)
	}
	return b.jwt
}

// String returns Build().
func (b *TokenBuilder) String() string {
	return b.Build()
}

// Token implements oauth2.TokenSource so a builder can feed a Session.
func (b *TokenBuilder) Token() (*oauth2.Token, error) {
	signed, err := b.Sign()
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: signed, TokenType: "Bearer"}
	if exp, ok := b.payload.ExpiresAt(); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
