package model

import "time"

// Wallet is the internal balance used for deposit refunds, escrow releases
// and wallet-method payments.
type Wallet struct {
	UID          string    `gorm:"column:uid;primaryKey;size:128"`
	BalanceCents int64     `gorm:"column:balance_cents;not null;default:0"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}
