// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithCertificateSerial(ctx, "1A2B3C")
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey         struct{}
	requestTimeKey       struct{}
	certificateSerialKey struct{}
)

// RequestID retrieves the correlation ID assigned by the request ID
// middleware. Returns the empty string if not set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the request time from the context, falling back to the wall
// clock. Services use this instead of time.Now so tests can pin the clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time in the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// CertificateSerial retrieves the serial number of the client certificate
// presented by an inbound callback caller. Empty when the caller presented
// none.
func CertificateSerial(ctx context.Context) string {
	if s, ok := ctx.Value(certificateSerialKey{}).(string); ok {
		return s
	}
	return ""
}

// WithCertificateSerial injects a presented certificate serial into the context.
func WithCertificateSerial(ctx context.Context, serial string) context.Context {
	return context.WithValue(ctx, certificateSerialKey{}, serial)
}
