package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/insightbot/subgate/pkg/qrcode"
	"github.com/insightbot/subgate/svc/subscription"
)

// ProcessorClient is the slice of the processor API the gateway uses.
type ProcessorClient interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}

// Activator drives the subscription transition on a finished payment.
type Activator interface {
	Activate(ctx context.Context, subscriptionID, paymentID uuid.UUID, months int) error
}

// Gateway creates invoices with the external processor, verifies IPN
// signatures, and idempotently drives subscription activation from
// webhook deliveries.
type Gateway struct {
	store      Store
	events     subscription.EventStore
	activator  Activator
	processor  ProcessorClient
	plans      *subscription.PlanSet
	whitelist  map[string]struct{}
	ipnSecret  string
	webhookURL string
	expiration time.Duration
	production bool
	now        func() time.Time
	log        *slog.Logger
}

// GatewayConfig carries the gateway's construction parameters.
type GatewayConfig struct {
	// SupportedCurrencies is the pay-currency whitelist, lowercase codes.
	SupportedCurrencies []string
	// IPNSecret is the shared secret for webhook signature verification.
	IPNSecret string
	// WebhookURL is advertised to the processor as the IPN callback.
	WebhookURL string
	// InvoiceExpiration bounds how long a pending invoice stays payable.
	InvoiceExpiration time.Duration
	// Production selects fail-closed signature semantics when the secret
	// is missing.
	Production bool
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayClock overrides the time source, for tests.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGateway creates the payment gateway. Panics on nil dependencies to
// fail fast during initialization.
func NewGateway(store Store, events subscription.EventStore, activator Activator, processor ProcessorClient, plans *subscription.PlanSet, cfg GatewayConfig, opts ...GatewayOption) *Gateway {
	if store == nil {
		panic("payment: Store is required")
	}
	if events == nil {
		panic("payment: EventStore is required")
	}
	if activator == nil {
		panic("payment: Activator is required")
	}
	if processor == nil {
		panic("payment: ProcessorClient is required")
	}
	if plans == nil {
		panic("payment: PlanSet is required")
	}

	whitelist := make(map[string]struct{}, len(cfg.SupportedCurrencies))
	for _, c := range cfg.SupportedCurrencies {
		whitelist[strings.ToLower(c)] = struct{}{}
	}

	g := &Gateway{
		store:      store,
		events:     events,
		activator:  activator,
		processor:  processor,
		plans:      plans,
		whitelist:  whitelist,
		ipnSecret:  cfg.IPNSecret,
		webhookURL: cfg.WebhookURL,
		expiration: cfg.InvoiceExpiration,
		production: cfg.Production,
		now:        func() time.Time { return time.Now().UTC() },
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CreateInvoice validates the request, creates the invoice with the
// processor and persists a pending payment. The returned instructions
// carry only processor-visible fields, never the raw response.
func (g *Gateway) CreateInvoice(ctx context.Context, subscriptionID uuid.UUID, groupID int64, months int, currency string) (*Instructions, error) {
	currency = strings.ToLower(currency)
	if _, ok := g.whitelist[currency]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	plan, ok := g.plans.ByMonths(months)
	if !ok {
		return nil, fmt.Errorf("%w: %d months", ErrUnknownPlan, months)
	}

	paymentID := uuid.New()
	invoice, err := g.processor.CreateInvoice(ctx, InvoiceRequest{
		PriceAmount:      plan.PriceUSD,
		PriceCurrency:    "usd",
		PayCurrency:      currency,
		OrderID:          paymentID.String(),
		OrderDescription: fmt.Sprintf("subscription %d month(s) for group %d", months, groupID),
		IPNCallbackURL:   g.webhookURL,
	})
	if err != nil {
		return nil, err
	}

	now := g.now()
	expiresAt := now.Add(g.expiration)
	if err := g.store.Create(ctx, &Payment{
		ID:             paymentID,
		SubscriptionID: subscriptionID,
		GroupID:        groupID,
		InvoiceID:      invoice.ID,
		AmountUSD:      plan.PriceUSD,
		Currency:       currency,
		Months:         months,
		Status:         StatusPending,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		return nil, err
	}

	g.appendEvent(ctx, subscriptionID, subscription.EventInvoiceCreated, map[string]any{
		"invoice_id": invoice.ID,
		"amount_usd": plan.PriceUSD,
		"currency":   currency,
		"months":     months,
	})

	png, err := qrcode.Generate(invoice.InvoiceURL, 256)
	if err != nil {
		// Instructions without a QR image are still actionable.
		g.log.WarnContext(ctx, "failed to render invoice QR code",
			slog.String("invoice_id", invoice.ID),
			slog.String("error", err.Error()))
		png = nil
	}

	return &Instructions{
		InvoiceID:  invoice.ID,
		PayAddress: invoice.PayAddress,
		PayAmount:  invoice.PayAmount,
		Currency:   invoice.PayCurrency,
		InvoiceURL: invoice.InvoiceURL,
		ExpiresAt:  expiresAt,
		QRCode:     png,
	}, nil
}

// VerifySignature checks the hex HMAC-SHA512 of the exact raw body
// against the provided header value in constant time. With no secret
// configured, production rejects while non-production allows with a
// loud warning. The asymmetry is intentional.
func (g *Gateway) VerifySignature(ctx context.Context, rawBody []byte, signature string) error {
	if g.ipnSecret == "" {
		if g.production {
			return ErrMissingSecret
		}
		g.log.WarnContext(ctx, "IPN secret not configured, accepting unverified webhook")
		return nil
	}

	mac := hmac.New(sha512.New, []byte(g.ipnSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrSignatureMismatch
	}
	return nil
}

// ProcessWebhook applies one IPN delivery. The store's atomic
// transition guard makes redelivery safe: a terminal status is never
// overwritten, and activation runs only on the delivery that actually
// moved the payment into the finished state.
func (g *Gateway) ProcessWebhook(ctx context.Context, payload WebhookPayload) error {
	if payload.InvoiceID == "" {
		return fmt.Errorf("%w: missing invoice_id", ErrInvalidPayload)
	}
	if !payload.PaymentStatus.Known() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, payload.PaymentStatus)
	}

	update := StatusUpdate{
		Status:          payload.PaymentStatus,
		Confirmations:   payload.Confirmations,
		TransactionHash: payload.PaymentHash,
	}
	if payload.PaymentStatus == StatusFinished {
		confirmedAt := g.now()
		update.ConfirmedAt = &confirmedAt
	}

	p, applied, err := g.store.Transition(ctx, payload.InvoiceID, update)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown invoice %s", ErrInvalidPayload, payload.InvoiceID)
		}
		return err
	}
	if !applied {
		g.log.InfoContext(ctx, "webhook ignored by status guard",
			slog.String("invoice_id", payload.InvoiceID),
			slog.String("current_status", string(p.Status)),
			slog.String("delivered_status", string(payload.PaymentStatus)))
		return nil
	}

	switch {
	case payload.PaymentStatus == StatusFinished:
		g.appendEvent(ctx, p.SubscriptionID, subscription.EventPaymentReceived, map[string]any{
			"invoice_id":    p.InvoiceID,
			"amount_usd":    p.AmountUSD,
			"currency":      p.Currency,
			"confirmations": payload.Confirmations,
		})
		if err := g.activator.Activate(ctx, p.SubscriptionID, p.ID, p.Months); err != nil {
			return err
		}
	case payload.PaymentStatus.IsTerminal():
		g.appendEvent(ctx, p.SubscriptionID, subscription.EventPaymentFailed, map[string]any{
			"invoice_id": p.InvoiceID,
			"status":     string(payload.PaymentStatus),
		})
	}

	return nil
}

func (g *Gateway) appendEvent(ctx context.Context, subscriptionID uuid.UUID, eventType subscription.EventType, data map[string]any) {
	if err := g.events.Append(ctx, subscription.Event{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Type:           eventType,
		Data:           data,
		CreatedAt:      g.now(),
	}); err != nil {
		g.log.ErrorContext(ctx, "failed to append payment event",
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}
