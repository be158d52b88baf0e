package service

import "errors"

// Not-found / authorization.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
)

// Validation errors: rejected synchronously, no state was mutated.
var (
	ErrAuctionNotActive    = errors.New("auction not active")
	ErrAuctionClosed       = errors.New("auction already closed")
	ErrBidTooLow           = errors.New("bid below minimum increment")
	ErrDepositRequired     = errors.New("deposit required")
	ErrDepositNotRequired  = errors.New("auction does not require a deposit")
	ErrDepositTooSmall     = errors.New("deposit below requirement")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidMethod       = errors.New("unsupported payment method")
	ErrSelfBid             = errors.New("cannot bid on your own auction")
)

// Conflict errors: the caller lost a race or acted on stale state; retry
// with fresh state.
var (
	ErrStaleBid          = errors.New("bid lost the race, price has moved")
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	ErrDepositNotPaid    = errors.New("deposit is not in paid state")
	ErrDisputeNotOpen    = errors.New("no open dispute to resolve")
	ErrSplitMismatch     = errors.New("split amounts do not sum to escrowed amount")
	ErrAlreadyPaid       = errors.New("already paid")
)

// ErrPaymentFailed wraps gateway failures: no deposit or escrow state was
// mutated.
var ErrPaymentFailed = errors.New("payment failed")
