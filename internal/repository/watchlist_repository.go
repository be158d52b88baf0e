package repository

import (
	"context"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchlistRepository interface {
	Add(ctx context.Context, w *model.WatchlistEntry) error
	Remove(ctx context.Context, userUID string, auctionID uint64) error
	ListByAuction(ctx context.Context, auctionID uint64) ([]model.WatchlistEntry, error)
	ListByUser(ctx context.Context, userUID string) ([]model.WatchlistEntry, error)
	SetDB(db *gorm.DB)
}

type watchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) WatchlistRepository {
	return &watchlistRepository{db: db}
}

func (r *watchlistRepository) Add(ctx context.Context, w *model.WatchlistEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_uid"}, {Name: "auction_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"notify_price_change": w.NotifyPriceChange,
			"notify_ending_soon":  w.NotifyEndingSoon,
			"notify_new_bid":      w.NotifyNewBid,
		}),
	}).Create(w).Error
}

func (r *watchlistRepository) Remove(ctx context.Context, userUID string, auctionID uint64) error {
	return r.db.WithContext(ctx).
		Where("user_uid = ? AND auction_id = ?", userUID, auctionID).
		Delete(&model.WatchlistEntry{}).Error
}

func (r *watchlistRepository) ListByAuction(ctx context.Context, auctionID uint64) ([]model.WatchlistEntry, error) {
	var list []model.WatchlistEntry
	if err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *watchlistRepository) ListByUser(ctx context.Context, userUID string) ([]model.WatchlistEntry, error) {
	var list []model.WatchlistEntry
	if err := r.db.WithContext(ctx).
		Where("user_uid = ?", userUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *watchlistRepository) SetDB(db *gorm.DB) {
	r.db = db
}
