package wsclient

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// Session pairs a gateway with a token source and fetches a token for every call.
// Any caching is up to the source, e.g. oauth2.ReuseTokenSource.
type Session struct {
	gateway *Gateway
	source  oauth2.TokenSource
}

// NewSession binds gw to src. A *TokenBuilder is a valid source.
func NewSession(gw *Gateway, src oauth2.TokenSource) *Session {
	return &Session{gateway: gw, source: src}
}

// Gateway returns the underlying gateway.
func (s *Session) Gateway() *Gateway {
	return s.gateway
}

// Get fetches a token and calls Gateway.Get with it.
func (s *Session) Get(ctx context.Context, subService string, params *Params, body any) (*Response, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	return s.gateway.Get(ctx, token, subService, params, body)
}

// Post fetches a token and calls Gateway.Post with it.
func (s *Session) Post(ctx context.Context, subService string, body any) (*Response, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	return s.gateway.Post(ctx, token, subService, body)
}

// Put fetches a token and calls Gateway.Put with it.
func (s *Session) Put(ctx context.Context, subService string, body any) (*Response, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	return s.gateway.Put(ctx, token, subService, body)
}

func (s *Session) token() (string, error) {
	if s.source == nil {
		return "", newError(ErrCodeTokenUnavailable, errors.New("no token source"))
	}
	tok, err := s.source.Token()
	if err != nil {
		return "", newError(ErrCodeTokenUnavailable, err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", newError(ErrCodeTokenUnavailable, errors.New("empty access token returned"))
	}
	return tok.AccessToken, nil
}
