package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	activationmodels "rtpbridge/internal/activation/models"
	"rtpbridge/internal/callback"
	rtpmodels "rtpbridge/internal/rtp/models"
	rtpservice "rtpbridge/internal/rtp/service"
	dErrors "rtpbridge/pkg/domain-errors"
	"rtpbridge/pkg/requestcontext"
)

// Dispatcher sends and cancels RTPs.
type Dispatcher interface {
	Send(ctx context.Context, cmd rtpservice.SendCommand) (rtpmodels.Rtp, error)
	Cancel(ctx context.Context, resourceID uuid.UUID) (rtpmodels.Rtp, error)
}

// CallbackHandler reduces inbound status reports.
type CallbackHandler interface {
	Handle(ctx context.Context, p *callback.Payload) error
}

// CallbackVerifier authenticates inbound callback callers.
type CallbackVerifier interface {
	Verify(ctx context.Context, p *callback.Payload, presentedSerial string) error
}

// ActivationService manages payer activations.
type ActivationService interface {
	Activate(ctx context.Context, debtorProviderID, fiscalCode string) (activationmodels.Activation, error)
	FindByFiscalCode(ctx context.Context, fiscalCode string) (activationmodels.Activation, error)
}

// Handler bundles the transport dependencies.
type Handler struct {
	dispatcher  Dispatcher
	callbacks   CallbackHandler
	verifier    CallbackVerifier
	activations ActivationService
	logger      *slog.Logger
}

func NewHandler(dispatcher Dispatcher, callbacks CallbackHandler, verifier CallbackVerifier, activations ActivationService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher:  dispatcher,
		callbacks:   callbacks,
		verifier:    verifier,
		activations: activations,
		logger:      logger,
	}
}

type sendRequest struct {
	NoticeNumber string `json:"notice_number"`
	AmountCents  int64  `json:"amount_cents"`
	Description  string `json:"description"`
	Subject      string `json:"subject"`
	ExpiryDate   string `json:"expiry_date"`
	PayerID      string `json:"payer_id"`
	PayerName    string `json:"payer_name"`
	PayeeID      string `json:"payee_id"`
	PayeeName    string `json:"payee_name"`
	IBAN         string `json:"iban"`
	PayTrxRef    string `json:"pay_trx_ref"`
	Confirmed    bool   `json:"confirmed"`
}

type rtpResponse struct {
	ResourceID uuid.UUID           `json:"resource_id"`
	Status     rtpmodels.RtpStatus `json:"status"`
	Events     int                 `json:"events"`
}

func toRtpResponse(rtp rtpmodels.Rtp) rtpResponse {
	return rtpResponse{ResourceID: rtp.ResourceID, Status: rtp.Status, Events: len(rtp.Events)}
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "decode send request"))
		return
	}

	cmd := rtpservice.SendCommand{
		NoticeNumber: req.NoticeNumber,
		AmountCents:  req.AmountCents,
		Description:  req.Description,
		Subject:      req.Subject,
		PayerID:      req.PayerID,
		PayerName:    req.PayerName,
		PayeeID:      req.PayeeID,
		PayeeName:    req.PayeeName,
		IBAN:         req.IBAN,
		PayTrxRef:    req.PayTrxRef,
		Confirmed:    req.Confirmed,
	}
	if req.ExpiryDate != "" {
		expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "expiry_date must be YYYY-MM-DD"))
			return
		}
		cmd.ExpiryDate = expiry
	}

	sent, err := h.dispatcher.Send(r.Context(), cmd)
	if err != nil {
		h.logger.Warn("send rtp failed", "request_id", requestcontext.RequestID(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRtpResponse(sent))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	resourceID, err := uuid.Parse(chi.URLParam(r, "resourceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "resource id must be a UUID"))
		return
	}

	cancelled, err := h.dispatcher.Cancel(r.Context(), resourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRtpResponse(cancelled))
}

type activateRequest struct {
	ServiceProviderDebtor string `json:"service_provider_debtor"`
	FiscalCode            string `json:"fiscal_code"`
}

type activationResponse struct {
	ID                    uuid.UUID `json:"id"`
	FiscalCode            string    `json:"fiscal_code"`
	ServiceProviderDebtor string    `json:"service_provider_debtor"`
	EffectiveDate         time.Time `json:"effective_date"`
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "decode activation request"))
		return
	}

	activation, err := h.activations.Activate(r.Context(), req.ServiceProviderDebtor, req.FiscalCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activationResponse{
		ID:                    activation.ID,
		FiscalCode:            activation.FiscalCode,
		ServiceProviderDebtor: activation.ServiceProviderDebtor,
		EffectiveDate:         activation.EffectiveDate,
	})
}

func (h *Handler) handleFindActivation(w http.ResponseWriter, r *http.Request) {
	activation, err := h.activations.FindByFiscalCode(r.Context(), chi.URLParam(r, "fiscalCode"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activationResponse{
		ID:                    activation.ID,
		FiscalCode:            activation.FiscalCode,
		ServiceProviderDebtor: activation.ServiceProviderDebtor,
		EffectiveDate:         activation.EffectiveDate,
	})
}

// handleCallback authenticates the caller, runs the pipeline and echoes
// the payload back unchanged on full completion.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var payload callback.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "decode callback payload"))
		return
	}

	serial := requestcontext.CertificateSerial(r.Context())
	if err := h.verifier.Verify(r.Context(), &payload, serial); err != nil {
		writeError(w, err)
		return
	}

	if err := h.callbacks.Handle(r.Context(), &payload); err != nil {
		h.logger.Warn("callback failed", "request_id", requestcontext.RequestID(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &payload)
}
