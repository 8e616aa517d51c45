package wsclient

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Verifier checks tokens produced by a TokenBuilder with the same algorithm and key.
type Verifier struct {
	algorithm Algorithm
	key       any
}

// NewVerifier reads the key file once. For RS256 either the private key used for
// signing or its public half may be given.
func NewVerifier(algorithm Algorithm, keyPath string) (*Verifier, error) {
	var (
		key any
		err error
	)
	if algorithm.hmac() {
		key, err = loadKey(algorithm, keyPath)
	} else {
		key, err = loadVerifyKey(algorithm, keyPath)
	}
	if err != nil {
		return nil, err
	}
	return &Verifier{algorithm: algorithm, key: key}, nil
}

// Verify checks the signature and returns the decoded claims. A rejected token is
// reported with code token_rejected, which is not an unauthorized failure.
func (v *Verifier) Verify(token string) (Claims, error) {
	if token == "" {
		return nil, newError(ErrCodeTokenRejected, errors.New("token is empty"))
	}
	sigAlg, err := v.algorithm.jwa()
	if err != nil {
		return nil, err
	}
	payload, err := jws.Verify([]byte(token), jws.WithKey(sigAlg, v.key))
	if err != nil {
		return nil, newError(ErrCodeTokenRejected, err)
	}
	return decodeClaims(payload)
}

// ParseUnverified decodes the claims of a compact token without checking its signature.
func ParseUnverified(token string) (Claims, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return nil, newError(ErrCodeTokenRejected, err)
	}
	return decodeClaims(msg.Payload())
}

func decodeClaims(payload []byte) (Claims, error) {
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, newError(ErrCodeTokenRejected, fmt.Errorf("decode claims: %w", err))
	}
	return claims, nil
}

func loadVerifyKey(alg Algorithm, path string) (any, error) {
	if _, err := alg.jwa(); err != nil {
		return nil, err
	}
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, newError(ErrCodeInvalidKey, fmt.Errorf("parse pem key %q: %w", path, err))
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, newError(ErrCodeInvalidKey, err)
	}
	return pub, nil
}
