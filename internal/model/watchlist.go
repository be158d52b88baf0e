package model

import "time"

// WatchlistEntry subscribes a user to auction events. Each flag gates one
// event kind; the dispatcher only fans out to matching subscriptions.
type WatchlistEntry struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement"`
	UserUID           string    `gorm:"column:user_uid;size:128;uniqueIndex:idx_watch_user_auction;not null"`
	AuctionID         uint64    `gorm:"column:auction_id;uniqueIndex:idx_watch_user_auction;index;not null"`
	NotifyPriceChange bool      `gorm:"column:notify_price_change;not null;default:true"`
	NotifyEndingSoon  bool      `gorm:"column:notify_ending_soon;not null;default:true"`
	NotifyNewBid      bool      `gorm:"column:notify_new_bid;not null;default:false"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

func (WatchlistEntry) TableName() string {
	return "watchlist_entries"
}

type WatchEvent string

const (
	WatchEventPriceChange WatchEvent = "price_change"
	WatchEventEndingSoon  WatchEvent = "ending_soon"
	WatchEventNewBid      WatchEvent = "new_bid"
)

// Wants reports whether this subscription opted in to the event kind.
func (w *WatchlistEntry) Wants(ev WatchEvent) bool {
	switch ev {
	case WatchEventPriceChange:
		return w.NotifyPriceChange
	case WatchEventEndingSoon:
		return w.NotifyEndingSoon
	case WatchEventNewBid:
		return w.NotifyNewBid
	}
	return false
}
