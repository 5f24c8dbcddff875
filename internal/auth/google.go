package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nati-d/email-automation-ai-agent-sub000/internal/core"
	"github.com/nati-d/email-automation-ai-agent-sub000/internal/models"

	retry "github.com/appleboy/go-httpretry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// DefaultRevokeURL is Google's token revocation endpoint
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// defaultTokenLifetime is assumed when the token endpoint omits expires_in
const defaultTokenLifetime = time.Hour

var _ core.IdentityProvider = (*GoogleProvider)(nil)

// GoogleConfig contains configuration for the Google provider.
// Endpoint, UserInfoEndpoint and RevokeURL default to Google's production
// endpoints and are only overridden in tests.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	Endpoint         oauth2.Endpoint
	UserInfoEndpoint string
	RevokeURL        string
}

// GoogleProvider is the identity provider backed by Google OAuth2.
type GoogleProvider struct {
	config           *oauth2.Config
	httpClient       *http.Client
	retryClient      *retry.Client
	userInfoEndpoint string
	revokeURL        string
	metrics          core.Recorder
}

// NewGoogleProvider creates a provider. httpClient carries the per-call
// timeout; retryClient is only used for revocation.
func NewGoogleProvider(
	cfg GoogleConfig,
	httpClient *http.Client,
	retryClient *retry.Client,
	m core.Recorder,
) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		httpClient:       httpClient,
		retryClient:      retryClient,
		userInfoEndpoint: cfg.UserInfoEndpoint,
		revokeURL:        revokeURL,
		metrics:          m,
	}
}

func (p *GoogleProvider) Name() string {
	return models.ProviderGoogle
}

// AuthCodeURL forces offline access and the consent prompt on every request,
// so Google reissues a refresh token even for a user who consented before.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token. Codes are single-use,
// so a failed exchange is never retried here.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (models.Token, error) {
	start := time.Now()
	tok, err := p.config.Exchange(p.clientContext(ctx), code)
	p.metrics.RecordProviderCall("exchange", err == nil, time.Since(start))
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	token, err := tokenFromOAuth2(tok, time.Now())
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	return token, nil
}

// FetchProfile reads the userinfo record visible to token.
func (p *GoogleProvider) FetchProfile(
	ctx context.Context,
	token models.Token,
) (models.IdentityProfile, error) {
	start := time.Now()
	profile, err := p.fetchProfile(ctx, token)
	p.metrics.RecordProviderCall("profile", err == nil, time.Since(start))
	if err != nil {
		return models.IdentityProfile{}, fmt.Errorf("%w: %v", ErrProviderProfile, err)
	}
	return profile, nil
}

func (p *GoogleProvider) fetchProfile(
	ctx context.Context,
	token models.Token,
) (models.IdentityProfile, error) {
	ctx = p.clientContext(ctx)
	opts := []option.ClientOption{
		option.WithHTTPClient(p.config.Client(ctx, &oauth2.Token{
			AccessToken: token.AccessToken,
			TokenType:   token.TokenType,
			Expiry:      token.ExpiresAt,
		})),
	}
	if p.userInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.userInfoEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return models.IdentityProfile{}, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return models.IdentityProfile{}, err
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return models.IdentityProfile{}, fmt.Errorf("email %q is not verified", info.Email)
	}
	return models.NewIdentityProfile(info.Id, info.Email, info.Name, info.Picture, info.Locale)
}

// Refresh mints a new access token from refreshToken. Google usually omits
// the refresh token in the response; callers merge with models.Token.Refreshed.
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (models.Token, error) {
	if refreshToken == "" {
		return models.Token{}, ErrMissingRefresh
	}
	start := time.Now()
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Unix(1, 0),
	})
	tok, err := src.Token()
	p.metrics.RecordProviderCall("refresh", err == nil, time.Since(start))
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %v", ErrProviderRefresh, err)
	}
	token, err := tokenFromOAuth2(tok, time.Now())
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %v", ErrProviderRefresh, err)
	}
	return token, nil
}

// Revoke invalidates an access or refresh token at Google.
func (p *GoogleProvider) Revoke(ctx context.Context, token string) error {
	start := time.Now()
	err := p.revoke(ctx, token)
	p.metrics.RecordProviderCall("revoke", err == nil, time.Since(start))
	return err
}

func (p *GoogleProvider) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	resp, err := p.retryClient.Post(
		ctx,
		p.revokeURL,
		retry.WithBody("application/x-www-form-urlencoded", strings.NewReader(form.Encode())),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRevoke, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: HTTP %d - %s", ErrProviderRevoke, resp.StatusCode, string(body))
	}
	return nil
}

// clientContext makes x/oauth2 use the configured client and its timeout
func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func tokenFromOAuth2(tok *oauth2.Token, now time.Time) (models.Token, error) {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = now.Add(defaultTokenLifetime)
	}
	scope, _ := tok.Extra("scope").(string)
	return models.NewTokenAt(now, tok.AccessToken, tok.RefreshToken, expiresAt, scope, tok.TokenType)
}
