package wsclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Algorithm names a supported JWS signing algorithm.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
)

var signatureAlgorithms = map[Algorithm]jwa.SignatureAlgorithm{
	HS256: jwa.HS256,
	HS384: jwa.HS384,
	HS512: jwa.HS512,
	RS256: jwa.RS256,
}

// ParseAlgorithm resolves an algorithm name, ignoring case.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := signatureAlgorithms[alg]; !ok {
		return "", newError(ErrCodeUnsupportedAlgorithm, fmt.Errorf("algorithm %q", name))
	}
	return alg, nil
}

// Supported reports whether a is one of HS256, HS384, HS512 or RS256.
func (a Algorithm) Supported() bool {
	_, ok := signatureAlgorithms[a]
	return ok
}

func (a Algorithm) hmac() bool {
	return a == HS256 || a == HS384 || a == HS512
}

func (a Algorithm) jwa() (jwa.SignatureAlgorithm, error) {
	sig, ok := signatureAlgorithms[a]
	if !ok {
		return "", newError(ErrCodeUnsupportedAlgorithm, fmt.Errorf("algorithm %q", string(a)))
	}
	return sig, nil
}

// loadKey reads the key file for alg. HMAC secrets are the raw file bytes;
// RS256 keys are PEM encoded.
func loadKey(alg Algorithm, path string) (any, error) {
	if _, err := alg.jwa(); err != nil {
		return nil, err
	}
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	if alg.hmac() {
		if len(data) == 0 {
			return nil, newError(ErrCodeInvalidKey, fmt.Errorf("key file %q is empty", path))
		}
		return data, nil
	}
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, newError(ErrCodeInvalidKey, fmt.Errorf("parse pem key %q: %w", path, err))
	}
	if key.KeyType() != jwa.RSA {
		return nil, newError(ErrCodeInvalidKey, fmt.Errorf("key %q is %s, want RSA", path, key.KeyType()))
	}
	return key, nil
}

func readKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, newError(ErrCodeKeyUnreadable, errors.New("key path is empty"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(ErrCodeKeyUnreadable, err)
	}
	return data, nil
}
