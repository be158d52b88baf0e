package model

import "time"

type NotificationType string

const (
	NotificationOutbid          NotificationType = "OUTBID"
	NotificationAuctionWon      NotificationType = "AUCTION_WON"
	NotificationAuctionLost     NotificationType = "AUCTION_LOST"
	NotificationAuctionSold     NotificationType = "AUCTION_SOLD"
	NotificationAuctionEnding   NotificationType = "AUCTION_ENDING"
	NotificationNewBid          NotificationType = "NEW_BID"
	NotificationDepositReceived NotificationType = "DEPOSIT_RECEIVED"
	NotificationDepositRefunded NotificationType = "DEPOSIT_REFUNDED"
	NotificationDisputeOpened   NotificationType = "DISPUTE_OPENED"
	NotificationDisputeResolved NotificationType = "DISPUTE_RESOLVED"
	NotificationReserveMet      NotificationType = "RESERVE_MET"
	NotificationWatchlistUpdate NotificationType = "WATCHLIST_UPDATE"
)

type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserUID   string           `gorm:"column:user_uid;size:128;index;not null"`
	Type      NotificationType `gorm:"column:type;size:64;not null"`
	Title     string           `gorm:"column:title;size:255"`
	Body      string           `gorm:"column:body;type:text"`
	AuctionID *uint64          `gorm:"column:auction_id;index"`
	EscrowID  *uint64          `gorm:"column:escrow_id;index"`
	Payload   string           `gorm:"column:payload;type:text"`
	ReadAt    *time.Time       `gorm:"column:read_at"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}
