package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/insightbot/subgate/pkg/breaker"
	"github.com/insightbot/subgate/pkg/cache"
)

// InvoiceRequest is the processor's invoice creation body.
type InvoiceRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
}

// Invoice is the subset of the processor's invoice response we consume.
type Invoice struct {
	ID            string  `json:"id"`
	InvoiceURL    string  `json:"invoice_url"`
	PayAddress    string  `json:"pay_address"`
	PayAmount     float64 `json:"pay_amount"`
	PayCurrency   string  `json:"pay_currency"`
	PaymentStatus Status  `json:"payment_status"`
}

// Processor is the HTTP client for the payment processor's API.
// Every call is routed through a dedicated circuit breaker so a failing
// processor degrades to fast typed errors instead of hanging checkouts,
// and the currency list is cached to avoid a remote call per checkout.
type Processor struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *breaker.CircuitBreaker
	currencies *cache.Cache[string, []string]
	cacheTTL   time.Duration
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) ProcessorOption {
	return func(p *Processor) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithBreaker overrides the circuit breaker configuration.
func WithBreaker(b *breaker.CircuitBreaker) ProcessorOption {
	return func(p *Processor) {
		if b != nil {
			p.breaker = b
		}
	}
}

// NewProcessor creates a processor client authenticated with the given
// API key.
func NewProcessor(baseURL, apiKey string, timeout time.Duration, opts ...ProcessorOption) *Processor {
	p := &Processor{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker.New("payment-processor", 5, 2, time.Minute),
		currencies: cache.New[string, []string](1, 10*time.Minute),
		cacheTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Close releases the currency cache sweeper.
func (p *Processor) Close() {
	p.currencies.Close()
}

// CreateInvoice asks the processor to issue a new invoice.
func (p *Processor) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	var invoice Invoice
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.call(ctx, http.MethodPost, "/invoice", req, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// InvoiceStatus fetches the current state of an invoice.
func (p *Processor) InvoiceStatus(ctx context.Context, invoiceID string) (*Invoice, error) {
	var invoice Invoice
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.call(ctx, http.MethodGet, "/invoice/"+invoiceID, nil, &invoice)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Currencies returns the processor's supported pay currencies, cached
// for the configured TTL.
func (p *Processor) Currencies(ctx context.Context) ([]string, error) {
	if cached, ok := p.currencies.Get("currencies"); ok {
		return cached, nil
	}

	var resp struct {
		Currencies []string `json:"currencies"`
	}
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.call(ctx, http.MethodGet, "/currencies", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	p.currencies.SetWithTTL("currencies", resp.Currencies, p.cacheTTL)
	return resp.Currencies, nil
}

func (p *Processor) call(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %w", ErrProcessorUnavailable, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return errors.Join(ErrProcessorUnavailable, err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrProcessorUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrProcessorUnavailable, method, path, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrProcessorUnavailable, err)
		}
	}
	return nil
}
