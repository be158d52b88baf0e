package gateway

import (
	"context"
	"errors"
)

// Method is the payment instrument selected by the payer. Wallet payments
// never reach the external gateway; they are settled against the internal
// balance by the caller.
type Method string

const (
	MethodCard         Method = "card"
	MethodWallet       Method = "wallet"
	MethodBankTransfer Method = "bank_transfer"
	MethodCashVoucher  Method = "cash_voucher"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodBankTransfer, MethodCashVoucher:
		return true
	}
	return false
}

// Deferred reports whether the method confirms out of band (bank transfer,
// cash voucher) instead of synchronously.
func (m Method) Deferred() bool {
	return m == MethodBankTransfer || m == MethodCashVoucher
}

type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusDeclined Status = "declined"
)

type Result struct {
	TransactionID string
	Status        Status
}

var (
	// ErrDeclined is returned when the gateway rejects the charge outright.
	ErrDeclined = errors.New("gateway: charge declined")
	// ErrUnavailable is returned on timeouts and transport failures; no
	// charge state may be assumed on either side.
	ErrUnavailable = errors.New("gateway: unavailable")
)

// Gateway is the external payment collaborator. Implementations must bound
// their own timeouts; callers treat any error as "no state changed".
type Gateway interface {
	Charge(ctx context.Context, amount int64, method Method, reference string) (Result, error)
	CheckStatus(ctx context.Context, transactionID string) (Status, error)
}
