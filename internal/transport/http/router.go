// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services and translate coded errors into status codes; no
// business logic lives here.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/requestcontext"
)

// CertificateSerialHeader carries the serial of the client certificate the
// callback caller presented, injected by the TLS-terminating proxy.
const CertificateSerialHeader = "X-Client-Certificate-Serial"

// NewRouter wires all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)

	r.Post("/rtps", h.handleSend)
	r.Post("/rtps/{resourceID}/cancel", h.handleCancel)

	r.Post("/activations", h.handleActivate)
	r.Get("/activations/{fiscalCode}", h.handleFindActivation)

	r.With(certificateSerial).Post("/callbacks", h.handleCallback)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// requestID assigns a correlation id to every request.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// certificateSerial requires the presented-serial header and exposes it to
// the verifier through the context.
func certificateSerial(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serial := r.Header.Get(CertificateSerialHeader)
		if serial == "" {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "missing certificate serial header"))
			return
		}
		ctx := requestcontext.WithCertificateSerial(r.Context(), serial)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so
// every handler answers with the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{"error": string(code)})
}
