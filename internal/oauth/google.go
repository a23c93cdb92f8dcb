// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

// Package oauth implements federated login providers. A provider turns an
// authorization code into an auth.FederatedIdentity; linking that identity
// to a local account is the authenticator's job.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/guideli/guideli/internal/auth"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var googleScopes = []string{"openid", "email", "profile"}

// GoogleProvider runs the Google authorization code flow with PKCE.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// Option configures a GoogleProvider.
type Option func(*GoogleProvider)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *GoogleProvider) {
		p.config.Endpoint = endpoint
	}
}

// WithUserInfoURL overrides the userinfo endpoint.
func WithUserInfoURL(url string) Option {
	return func(p *GoogleProvider) {
		p.userInfoURL = url
	}
}

// WithHTTPClient sets the client used for token and userinfo requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *GoogleProvider) {
		p.client = client
	}
}

// NewGoogleProvider creates a GoogleProvider.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...Option) (*GoogleProvider, error) {
	switch {
	case clientID == "":
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("client id is required")
	case clientSecret == "":
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("client secret is required")
	case redirectURL == "":
		return nil, oops.Code("OAUTH_INVALID_CONFIG").Errorf("redirect url is required")
	}

	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       googleScopes,
		},
		userInfoURL: GoogleUserInfoURL,
		client:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in routes and logs.
func (p *GoogleProvider) Name() string { return "google" }

// AuthCodeURL returns the consent page URL for state, bound to the PKCE
// verifier.
func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier))
}

// googleUserInfo is the subset of the OpenID Connect userinfo response used.
type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Exchange trades an authorization code for the user's identity. Accounts
// without a verified email are rejected with auth.ErrUnauthorized.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (auth.FederatedIdentity, error) {
	if code == "" {
		return auth.FederatedIdentity{}, oops.Code("OAUTH_MISSING_CODE").Wrap(auth.ErrUnauthorized)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return auth.FederatedIdentity{}, oops.Code("OAUTH_EXCHANGE_FAILED").
			With("provider", p.Name()).
			Wrap(err)
	}

	info, err := p.userInfo(ctx, token)
	if err != nil {
		return auth.FederatedIdentity{}, err
	}
	if info.Sub == "" || info.Email == "" {
		return auth.FederatedIdentity{}, oops.Code("OAUTH_PROFILE_INCOMPLETE").
			With("provider", p.Name()).
			Errorf("userinfo is missing subject or email")
	}
	if !info.EmailVerified {
		return auth.FederatedIdentity{}, oops.Code("OAUTH_EMAIL_UNVERIFIED").
			With("provider", p.Name()).
			Wrap(auth.ErrUnauthorized)
	}

	return auth.FederatedIdentity{
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		ProviderID: info.Sub,
	}, nil
}

func (p *GoogleProvider) userInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, oops.Code("OAUTH_USERINFO_FAILED").Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return googleUserInfo{}, oops.Code("OAUTH_USERINFO_FAILED").With("provider", p.Name()).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, oops.Code("OAUTH_USERINFO_FAILED").
			With("provider", p.Name()).
			With("status", resp.StatusCode).
			Errorf("userinfo request returned %s", resp.Status)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, oops.Code("OAUTH_USERINFO_FAILED").With("provider", p.Name()).Wrap(err)
	}
	info.Email = strings.TrimSpace(info.Email)
	return info, nil
}

// NewState returns a random state value and PKCE verifier for one login attempt.
func NewState() (state, verifier string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", oops.Code("OAUTH_STATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), oauth2.GenerateVerifier(), nil
}
