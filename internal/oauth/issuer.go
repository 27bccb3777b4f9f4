// Package oauth acquires OAuth2 client-credentials tokens from the token
// endpoints published in the service provider directory.
package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rtpbridge/internal/platform/channel"
	platformredis "rtpbridge/internal/platform/redis"
	dErrors "rtpbridge/pkg/domain-errors"
)

// cacheMargin is subtracted from a token's lifetime before caching so a
// cached token is never handed out moments before it expires.
const cacheMargin = 30 * time.Second

// TokenRequest carries the per-provider client-credentials configuration
// resolved from the registry.
type TokenRequest struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string
	MTLSRequired  bool
}

// Issuer performs the client-credentials grant. When a redis client is
// configured, tokens are cached per provider until shortly before expiry.
type Issuer struct {
	channels *channel.Builder
	cache    *platformredis.Client
	logger   *slog.Logger
	timeout  time.Duration
}

type Option func(*Issuer)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) { i.logger = logger }
}

// WithTimeout bounds each token request separately from the channel
// clients' call timeout. Zero leaves only the channel timeout in force.
func WithTimeout(timeout time.Duration) Option {
	return func(i *Issuer) { i.timeout = timeout }
}

// WithCache enables redis-backed token caching. A nil client is ignored.
func WithCache(cache *platformredis.Client) Option {
	return func(i *Issuer) { i.cache = cache }
}

func New(channels *channel.Builder, opts ...Option) *Issuer {
	i := &Issuer{channels: channels, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	if i.cache != nil && i.cache.Client == nil {
		i.cache = nil
	}
	return i
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GetToken returns an access token for the provider described by req.
// Missing endpoint, client id or secret is a configuration error; a token
// response without an access_token field is a fatal extraction error.
func (i *Issuer) GetToken(ctx context.Context, req TokenRequest) (string, error) {
	if req.TokenEndpoint == "" || req.ClientID == "" || req.ClientSecret == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "token configuration requires endpoint, client id and secret")
	}

	key := cacheKey(req)
	if token, ok := i.cached(ctx, key); ok {
		return token, nil
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	if req.Scope != "" {
		form.Set("scope", req.Scope)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "build token request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(req.ClientID, req.ClientSecret)

	client, err := i.channels.Client(req.MTLSRequired)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "select token channel")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", dErrors.Newf(dErrors.CodeUpstream, "token endpoint answered %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeUpstream, "token response lacks access_token")
	}

	i.store(ctx, key, tr)
	return tr.AccessToken, nil
}

func (i *Issuer) cached(ctx context.Context, key string) (string, bool) {
	if i.cache == nil {
		return "", false
	}
	token, err := i.cache.Get(ctx, key).Result()
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

func (i *Issuer) store(ctx context.Context, key string, tr tokenResponse) {
	if i.cache == nil {
		return
	}
	ttl := tokenLifetime(tr)
	if ttl <= cacheMargin {
		return
	}
	if err := i.cache.Set(ctx, key, tr.AccessToken, ttl-cacheMargin).Err(); err != nil {
		i.logger.Warn("token cache write failed", "error", err)
	}
}

// tokenLifetime prefers the explicit expires_in and falls back to peeking
// at the (unverified) exp claim when the token happens to be a JWT.
func tokenLifetime(tr tokenResponse) time.Duration {
	if tr.ExpiresIn > 0 {
		return time.Duration(tr.ExpiresIn) * time.Second
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return time.Until(exp.Time)
}

func cacheKey(req TokenRequest) string {
	sum := sha256.Sum256([]byte(req.TokenEndpoint + "|" + req.ClientID + "|" + req.Scope))
	return "rtp:token:" + hex.EncodeToString(sum[:16])
}
