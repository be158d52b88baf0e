package model

import "time"

type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "pending"
	DepositStatusPaid     DepositStatus = "paid"
	DepositStatusUsed     DepositStatus = "used"
	DepositStatusRefunded DepositStatus = "refunded"
)

// Deposit holds a participant's good-faith funds for one auction. The
// composite unique index makes concurrent duplicate payments converge to a
// single row.
type Deposit struct {
	ID           uint64        `gorm:"primaryKey;autoIncrement"`
	AuctionID    uint64        `gorm:"column:auction_id;uniqueIndex:idx_deposit_auction_user;not null"`
	UserUID      string        `gorm:"column:user_uid;size:128;uniqueIndex:idx_deposit_auction_user;not null"`
	Amount       int64         `gorm:"column:amount;not null"`
	Status       DepositStatus `gorm:"column:status;size:16;index;not null"`
	Method       string        `gorm:"column:method;size:32;not null"`
	GatewayRef   string        `gorm:"column:gateway_ref;size:64;index"`
	PaidAt       *time.Time    `gorm:"column:paid_at"`
	RefundedAt   *time.Time    `gorm:"column:refunded_at"`
	RefundReason string        `gorm:"column:refund_reason;size:255"`
	CreatedAt    time.Time     `gorm:"autoCreateTime"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime"`
}

func (Deposit) TableName() string {
	return "deposits"
}
