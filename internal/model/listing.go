package model

import "time"

// Listing is the thin catalog row an auction sells. Browsing, search and
// media live outside this service; only the title and seller are needed here.
type Listing struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"size:120;not null"`
	SellerUID string    `gorm:"column:seller_uid;size:128;index;not null"`
	Vertical  string    `gorm:"column:vertical;size:32;index"`
	Price     int64     `gorm:"column:price;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
