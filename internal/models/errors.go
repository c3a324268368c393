package models

import "errors"

// Domain error taxonomy. Declared here so the db layers and the services
// share one set of sentinels without import cycles. Handlers map these to
// HTTP status codes with errors.Is.
var (
	// ErrInsufficientStock: requested quantity exceeds current availability.
	// Recoverable; the caller should offer waitlist enrollment.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNoStockAvailable: waitlist offer attempted with zero availability.
	ErrNoStockAvailable = errors.New("no stock available")

	// ErrGiftOutOfStock: raffle draw/confirm against a depleted finite gift.
	ErrGiftOutOfStock = errors.New("gift out of stock")

	// ErrGiftInactive: raffle draw/edit against a deactivated gift.
	ErrGiftInactive = errors.New("gift is not active")

	// ErrNoEligibleCarts: raffle draw with no qualifying carts.
	ErrNoEligibleCarts = errors.New("no eligible carts")

	// ErrInvalidTransition: illegal status change. Caller logic error, not
	// retryable.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLockedForEdit: raffle edit/cancel on an already-paid cart. Terminal.
	ErrLockedForEdit = errors.New("record locked for edit")

	// ErrNotFound: the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVariantLocked: another session holds the variant lock. Transient;
	// the caller retries.
	ErrVariantLocked = errors.New("variant is locked by another operation")
)
