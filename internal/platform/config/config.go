package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the service. Values come
// from the environment so deployment stays twelve-factor; FromEnv fills
// development defaults where safe and leaves secrets empty when unset.
type Config struct {
	Addr string

	// DatabaseURL enables the Postgres-backed stores; when empty the
	// in-memory stores are used.
	DatabaseURL string

	// RedisURL enables the access-token cache; empty disables caching.
	RedisURL string

	Registry Registry
	Channel  Channel
	Outbound Outbound
	Kafka    Kafka

	// ServiceProviderID identifies this instance as creditor provider on
	// outbound RTPs.
	ServiceProviderID string
}

// Registry configures the service provider directory source.
type Registry struct {
	// SourceURL points at the versionless JSON document listing service
	// providers and their technical providers.
	SourceURL string
	CacheTTL  time.Duration
}

// Channel configures the key material for mutual TLS. Bundles are
// base64-encoded PKCS#12 archives.
type Channel struct {
	ClientBundleB64    string
	ClientBundleSecret string
	TrustAnchorB64     string
	TrustAnchorSecret  string
}

// Outbound configures the SEPA call and token request timeouts.
type Outbound struct {
	CallTimeout  time.Duration
	TokenTimeout time.Duration
}

// Kafka configures the audit publisher and the GDP creation-event consumer.
type Kafka struct {
	Brokers       string
	AuditTopic    string
	GDPTopic      string
	ConsumerGroup string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:              envOr("RTP_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("RTP_DATABASE_URL"),
		RedisURL:          os.Getenv("RTP_REDIS_URL"),
		ServiceProviderID: envOr("RTP_SERVICE_PROVIDER_ID", "PSP-LOCAL"),
		Registry: Registry{
			SourceURL: os.Getenv("RTP_REGISTRY_URL"),
			CacheTTL:  envDuration("RTP_REGISTRY_CACHE_TTL", 5*time.Minute),
		},
		Channel: Channel{
			ClientBundleB64:    os.Getenv("RTP_CLIENT_BUNDLE"),
			ClientBundleSecret: os.Getenv("RTP_CLIENT_BUNDLE_SECRET"),
			TrustAnchorB64:     os.Getenv("RTP_TRUST_ANCHOR"),
			TrustAnchorSecret:  os.Getenv("RTP_TRUST_ANCHOR_SECRET"),
		},
		Outbound: Outbound{
			CallTimeout:  envDuration("RTP_CALL_TIMEOUT", 10*time.Second),
			TokenTimeout: envDuration("RTP_TOKEN_TIMEOUT", 5*time.Second),
		},
		Kafka: Kafka{
			Brokers:       os.Getenv("RTP_KAFKA_BROKERS"),
			AuditTopic:    envOr("RTP_AUDIT_TOPIC", "rtp.audit"),
			GDPTopic:      envOr("RTP_GDP_TOPIC", "rtp.gdp.create"),
			ConsumerGroup: envOr("RTP_CONSUMER_GROUP", "rtpbridge"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
