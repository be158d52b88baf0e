package model

import "time"

type AuctionStyle string

const (
	AuctionStyleEnglish AuctionStyle = "english"
	AuctionStyleDutch   AuctionStyle = "dutch"
	AuctionStyleSealed  AuctionStyle = "sealed"
)

type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCompleted AuctionStatus = "completed"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Auction is the sale vehicle for exactly one listing. All amounts are in
// cents. Version guards the current-price commit: every accepted bid bumps
// it, and a bid written against a stale version loses the race.
type Auction struct {
	ID               uint64        `gorm:"primaryKey;autoIncrement"`
	ListingID        uint64        `gorm:"column:listing_id;index;not null"`
	SellerUID        string        `gorm:"column:seller_uid;size:128;index;not null"`
	Style            AuctionStyle  `gorm:"column:style;size:16;not null"`
	StartingPrice    int64         `gorm:"column:starting_price;not null"`
	ReservePrice     *int64        `gorm:"column:reserve_price"`
	BuyNowPrice      *int64        `gorm:"column:buy_now_price"`
	MinIncrement     int64         `gorm:"column:min_increment;not null;default:1"`
	DepositRequired  bool          `gorm:"column:deposit_required;not null;default:false"`
	DepositAmount    int64         `gorm:"column:deposit_amount"`
	DepositPercent   float64       `gorm:"column:deposit_percent"`
	StartAt          time.Time     `gorm:"column:start_at;not null"`
	EndAt            time.Time     `gorm:"column:end_at;index;not null"`
	CurrentPrice     int64         `gorm:"column:current_price;not null"`
	CurrentBidderUID *string       `gorm:"column:current_bidder_uid;size:128"`
	BidCount         uint          `gorm:"column:bid_count;not null;default:0"`
	ReserveMet       bool          `gorm:"column:reserve_met;not null;default:false"`
	EndingNotified   bool          `gorm:"column:ending_notified;not null;default:false"`
	Status           AuctionStatus `gorm:"column:status;size:16;index;not null"`
	Version          uint64        `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time     `gorm:"autoCreateTime"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime"`
}

func (Auction) TableName() string {
	return "auctions"
}

// DepositDue returns the amount a participant must deposit to bid. A fixed
// amount overrides the percentage when both are set.
func (a *Auction) DepositDue() int64 {
	if !a.DepositRequired {
		return 0
	}
	if a.DepositAmount > 0 {
		return a.DepositAmount
	}
	if a.DepositPercent > 0 {
		return int64(float64(a.StartingPrice) * a.DepositPercent / 100)
	}
	return 0
}
