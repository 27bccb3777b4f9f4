// Package channel builds the HTTP transports used for token acquisition
// and outbound SEPA calls: a plain client, and a mutual-TLS client fed by
// PKCS#12 key material when configured.
package channel

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// Construction failures are distinct so operators can tell misconfigured
// key material apart from transient faults. All of them are fatal at
// startup and never retried.
var (
	// ErrKeyMaterial marks a client bundle that is not valid base64 or
	// not a decodable PKCS#12 archive.
	ErrKeyMaterial = errors.New("malformed client key material")
	// ErrKeyPassword marks a bundle that decodes but rejects the password.
	ErrKeyPassword = errors.New("incorrect key material password")
	// ErrTrustAnchor marks an unreadable trusted-root bundle.
	ErrTrustAnchor = errors.New("unreadable trust anchor bundle")
	// ErrMTLSNotConfigured is returned when a provider requires mutual
	// TLS but no client bundle was supplied.
	ErrMTLSNotConfigured = errors.New("mutual TLS requested but no client bundle configured")
)

// Config carries the base64-encoded PKCS#12 bundles and their passwords.
// An empty ClientBundleB64 disables the mutual-TLS client.
type Config struct {
	ClientBundleB64    string
	ClientBundleSecret string
	TrustAnchorB64     string
	TrustAnchorSecret  string
}

// Builder hands out the plain or mutual-TLS HTTP client. Both clients are
// built once at construction; selection per call is just a field read.
type Builder struct {
	plain *http.Client
	mtls  *http.Client
}

// NewBuilder constructs both transports. It fails fast on malformed key
// material, a wrong password, or an unreadable trust bundle.
func NewBuilder(cfg Config, timeout time.Duration) (*Builder, error) {
	b := &Builder{plain: &http.Client{Timeout: timeout}}

	if cfg.ClientBundleB64 == "" {
		return b, nil
	}

	cert, err := clientCertificate(cfg.ClientBundleB64, cfg.ClientBundleSecret)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}

	if cfg.TrustAnchorB64 != "" {
		pool, err := trustPool(cfg.TrustAnchorB64, cfg.TrustAnchorSecret)
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}

	b.mtls = &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
	return b, nil
}

// Client selects the transport for a call. mtlsRequired reflects the
// registry entry's flag for the target provider.
// Plain returns the client without mutual TLS. Always available.
func (b *Builder) Plain() *http.Client { return b.plain }

func (b *Builder) Client(mtlsRequired bool) (*http.Client, error) {
	if !mtlsRequired {
		return b.plain, nil
	}
	if b.mtls == nil {
		return nil, ErrMTLSNotConfigured
	}
	return b.mtls, nil
}

func clientCertificate(bundleB64, secret string) (tls.Certificate, error) {
	raw, err := base64.StdEncoding.DecodeString(bundleB64)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	key, leaf, caCerts, err := pkcs12.DecodeChain(raw, secret)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return tls.Certificate{}, fmt.Errorf("%w: %v", ErrKeyPassword, err)
		}
		return tls.Certificate{}, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	chain := [][]byte{leaf.Raw}
	for _, ca := range caCerts {
		chain = append(chain, ca.Raw)
	}
	return tls.Certificate{Certificate: chain, PrivateKey: key, Leaf: leaf}, nil
}

func trustPool(bundleB64, secret string) (*x509.CertPool, error) {
	raw, err := base64.StdEncoding.DecodeString(bundleB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrustAnchor, err)
	}

	blocks, err := pkcs12.ToPEM(raw, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrustAnchor, err)
	}

	pool := x509.NewCertPool()
	added := 0
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			continue
		}
		if pool.AppendCertsFromPEM(pem.EncodeToMemory(block)) {
			added++
		}
	}
	if added == 0 {
		return nil, fmt.Errorf("%w: bundle holds no certificates", ErrTrustAnchor)
	}
	return pool, nil
}
