package gateway

import (
	"context"

	"github.com/google/uuid"
)

// Sandbox approves synchronous methods immediately and returns pending for
// deferred-confirmation methods. Used when no gateway URL is configured and
// in tests.
type Sandbox struct{}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Charge(_ context.Context, amount int64, method Method, _ string) (Result, error) {
	if amount <= 0 {
		return Result{}, ErrDeclined
	}
	st := StatusApproved
	if method.Deferred() {
		st = StatusPending
	}
	return Result{TransactionID: "sbx-" + uuid.NewString(), Status: st}, nil
}

func (s *Sandbox) CheckStatus(_ context.Context, _ string) (Status, error) {
	return StatusApproved, nil
}
