package model

import "time"

// Bid is an append-only record of one offer against an auction. Rows are
// never edited except for the winning flag, which is swapped when a bid is
// superseded. Sealed bids are excluded from current-price reads until close.
type Bid struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64    `gorm:"column:auction_id;index;not null"`
	BidderUID string    `gorm:"column:bidder_uid;size:128;index;not null"`
	Amount    int64     `gorm:"column:amount;not null"`
	Sealed    bool      `gorm:"column:sealed;not null;default:false"`
	Winning   bool      `gorm:"column:winning;not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Bid) TableName() string {
	return "bids"
}
