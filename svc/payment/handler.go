package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/insightbot/subgate/pkg/clientip"
	"github.com/insightbot/subgate/pkg/httpserver"
	"github.com/insightbot/subgate/pkg/ratelimit"
)

// SignatureHeader carries the processor's hex HMAC-SHA512 of the body.
const SignatureHeader = "x-nowpayments-sig"

// maxWebhookBody bounds IPN bodies; real payloads are a few hundred bytes.
const maxWebhookBody = 64 << 10

// Handler serves the payment webhook endpoint.
type Handler struct {
	gateway  *Gateway
	throttle *ratelimit.Keyed
	log      *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithThrottle rate limits webhook deliveries per client IP.
func WithThrottle(throttle *ratelimit.Keyed) HandlerOption {
	return func(h *Handler) {
		h.throttle = throttle
	}
}

// NewHandler creates the webhook handler.
func NewHandler(gateway *Gateway, log *slog.Logger, opts ...HandlerOption) *Handler {
	if gateway == nil {
		panic("payment: Gateway is required")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{gateway: gateway, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the HTTP surface: the IPN endpoint plus a health probe.
func (h *Handler) Router(probes ...func(context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if h.throttle != nil {
			r.Use(h.throttleMiddleware)
		}
		r.Post("/webhook/payment", h.handleWebhook)
	})
	r.Get("/health", httpserver.HealthCheckHandler(h.log, probes...))

	return r
}

// throttleMiddleware bounds deliveries per client IP. Limiter store
// errors let the request through; dropping a legitimate IPN over a
// throttle outage would stall activations.
func (h *Handler) throttleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.FromRequest(r)

		result, err := h.throttle.Allow(r.Context(), ip)
		if err != nil {
			h.log.WarnContext(r.Context(), "webhook throttle unavailable",
				slog.String("ip", ip),
				slog.String("error", err.Error()))
			next.ServeHTTP(w, r)
			return
		}
		if !result.Allowed() {
			retryAfter := int(result.RetryAfter().Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		http.Error(w, "missing signature header", http.StatusBadRequest)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Verify over the exact raw bytes before any parsing.
	if err := h.gateway.VerifySignature(ctx, rawBody, signature); err != nil {
		h.log.WarnContext(ctx, "webhook signature rejected",
			slog.String("error", err.Error()))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.gateway.ProcessWebhook(ctx, payload); err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			h.log.WarnContext(ctx, "webhook payload rejected",
				slog.String("invoice_id", payload.InvoiceID),
				slog.String("error", err.Error()))
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		h.log.ErrorContext(ctx, "webhook processing failed",
			slog.String("invoice_id", payload.InvoiceID),
			slog.String("error", err.Error()))
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
