package wsclient

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/impersonate"
)

// IDTokenParams selects how Google identity tokens are minted.
type IDTokenParams struct {
	ServiceAccount string
	IncludeEmail   bool
	Delegates      []string
}

// IDTokenOption customizes NewIDTokenSource.
type IDTokenOption func(*IDTokenParams)

// WithServiceAccount mints tokens by impersonating the given service account.
func WithServiceAccount(email string) IDTokenOption {
	return func(p *IDTokenParams) {
		p.ServiceAccount = email
	}
}

// WithIncludeEmail controls whether impersonated tokens carry the email claim.
func WithIncludeEmail(include bool) IDTokenOption {
	return func(p *IDTokenParams) {
		p.IncludeEmail = include
	}
}

// WithDelegates sets the impersonation delegation chain.
func WithDelegates(delegates ...string) IDTokenOption {
	return func(p *IDTokenParams) {
		p.Delegates = append([]string(nil), delegates...)
	}
}

var idTokenFactory = defaultIDTokenFactory

// NewIDTokenSource returns a source of Google identity tokens for audience, for web
// services deployed behind Cloud Run or IAP. Tokens are reused until they expire.
func NewIDTokenSource(ctx context.Context, audience string, opts ...IDTokenOption) (oauth2.TokenSource, error) {
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("audience is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var params IDTokenParams
	for _, opt := range opts {
		opt(&params)
	}
	ts, err := idTokenFactory(ctx, audience, params)
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}

func defaultIDTokenFactory(ctx context.Context, audience string, params IDTokenParams) (oauth2.TokenSource, error) {
	if params.ServiceAccount != "" {
		return impersonate.IDTokenSource(ctx, impersonate.IDTokenConfig{
			Audience:        audience,
			TargetPrincipal: params.ServiceAccount,
			IncludeEmail:    params.IncludeEmail,
			Delegates:       params.Delegates,
		})
	}
	return idtoken.NewTokenSource(ctx, audience)
}
