package dispatch

import "errors"

var (
	// ErrSendFuncRequired indicates the dispatcher was built without a send primitive.
	ErrSendFuncRequired = errors.New("send function is required")

	// ErrLimiterRequired indicates the dispatcher was built without a rate limiter.
	ErrLimiterRequired = errors.New("rate limiter is required")

	// ErrDeliveryFailed indicates a send exhausted its retry budget.
	ErrDeliveryFailed = errors.New("delivery failed")
)
