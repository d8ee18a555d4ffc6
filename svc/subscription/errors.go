package subscription

import "errors"

var (
	// ErrNotFound indicates the requested subscription or group does not exist.
	ErrNotFound = errors.New("subscription not found")

	// ErrGroupNotFound indicates the group has never been registered.
	ErrGroupNotFound = errors.New("group not found")

	// ErrTrialDenied indicates the trial abuse guard rejected the request.
	ErrTrialDenied = errors.New("trial denied by abuse guard")

	// ErrAlreadyExists indicates a duplicate insert for an existing row.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidMonths indicates an activation period outside the offered plans.
	ErrInvalidMonths = errors.New("invalid subscription period")

	// ErrFailedToLoadPlans indicates the plan source could not be read.
	ErrFailedToLoadPlans = errors.New("failed to load subscription plans")

	// ErrNoPlans indicates the plan source yielded an empty plan list.
	ErrNoPlans = errors.New("no subscription plans configured")
)
