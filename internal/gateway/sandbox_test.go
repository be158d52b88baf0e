package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodValidAndDeferred(t *testing.T) {
	assert.True(t, MethodCard.Valid())
	assert.True(t, MethodWallet.Valid())
	assert.True(t, MethodBankTransfer.Valid())
	assert.True(t, MethodCashVoucher.Valid())
	assert.False(t, Method("crypto").Valid())

	assert.False(t, MethodCard.Deferred())
	assert.False(t, MethodWallet.Deferred())
	assert.True(t, MethodBankTransfer.Deferred())
	assert.True(t, MethodCashVoucher.Deferred())
}

func TestSandboxCharge(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()

	res, err := s.Charge(ctx, 10_000, MethodCard, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
	assert.NotEmpty(t, res.TransactionID)

	res, err = s.Charge(ctx, 10_000, MethodBankTransfer, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	_, err = s.Charge(ctx, 0, MethodCard, "ref-3")
	require.ErrorIs(t, err, ErrDeclined)
}
