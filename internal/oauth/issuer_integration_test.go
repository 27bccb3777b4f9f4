//go:build integration

package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtpbridge/internal/platform/channel"
	platformredis "rtpbridge/internal/platform/redis"
	"rtpbridge/pkg/testutil/containers"
)

func TestGetTokenCachesInRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	cache, err := platformredis.New(rc.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)

	channels, err := channel.NewBuilder(channel.Config{}, 5*time.Second)
	require.NoError(t, err)
	issuer := New(channels, WithCache(cache))

	req := TokenRequest{TokenEndpoint: srv.URL, ClientID: "client", ClientSecret: "secret", Scope: "rtp"}

	token, err := issuer.GetToken(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	token, err = issuer.GetToken(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int64(1), hits.Load(), "second call must be served from the cache")

	// A different scope is a different cache entry.
	other := req
	other.Scope = "other"
	_, err = issuer.GetToken(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestGetTokenShortLifetimeBypassesCache(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	cache, err := platformredis.New(rc.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-short","token_type":"Bearer","expires_in":10}`))
	}))
	t.Cleanup(srv.Close)

	channels, err := channel.NewBuilder(channel.Config{}, 5*time.Second)
	require.NoError(t, err)
	issuer := New(channels, WithCache(cache))

	req := TokenRequest{TokenEndpoint: srv.URL, ClientID: "client", ClientSecret: "secret"}

	_, err = issuer.GetToken(context.Background(), req)
	require.NoError(t, err)
	_, err = issuer.GetToken(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "tokens expiring inside the safety margin are not cached")
}
