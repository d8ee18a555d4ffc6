package payment

import "errors"

var (
	// ErrNotFound indicates no payment exists for the invoice ID.
	ErrNotFound = errors.New("payment not found")

	// ErrAlreadyExists indicates a duplicate invoice ID insert.
	ErrAlreadyExists = errors.New("payment already exists")

	// ErrUnsupportedCurrency indicates the requested pay currency is not whitelisted.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrUnknownPlan indicates the requested period has no configured plan.
	ErrUnknownPlan = errors.New("no plan for requested period")

	// ErrInvalidPayload indicates a webhook body that cannot be processed.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrSignatureMismatch indicates the IPN signature does not match the body.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")

	// ErrMissingSecret indicates signature verification is impossible without a configured secret.
	ErrMissingSecret = errors.New("IPN secret is not configured")

	// ErrProcessorUnavailable indicates the payment processor call failed or was short-circuited.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
)
