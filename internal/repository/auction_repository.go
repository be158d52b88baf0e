package repository

import (
	"context"
	"time"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
)

type AuctionRepository interface {
	Create(ctx context.Context, a *model.Auction) error
	FindByID(ctx context.Context, id uint64) (*model.Auction, error)
	ListOpen(ctx context.Context, limit, offset int) ([]model.Auction, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.Auction, error)
	ListEndingSoon(ctx context.Context, now time.Time, within time.Duration) ([]model.Auction, error)
	CommitBid(ctx context.Context, id, expectedVersion uint64, price int64, bidderUID string) (int64, error)
	BumpVersion(ctx context.Context, id, expectedVersion uint64) (int64, error)
	MarkReserveMet(ctx context.Context, id uint64) (int64, error)
	MarkEndingNotified(ctx context.Context, id uint64) (int64, error)
	CloseIfActive(ctx context.Context, id uint64, status model.AuctionStatus, finalPrice int64, winnerUID *string) (int64, error)
	SetStatusIf(ctx context.Context, id uint64, expected, next model.AuctionStatus) (int64, error)
	SetDB(db *gorm.DB)
}

type auctionRepository struct {
	db *gorm.DB
}

func NewAuctionRepository(db *gorm.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) Create(ctx context.Context, a *model.Auction) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *auctionRepository) FindByID(ctx context.Context, id uint64) (*model.Auction, error) {
	var a model.Auction
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *auctionRepository) ListOpen(ctx context.Context, limit, offset int) ([]model.Auction, error) {
	var list []model.Auction
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.AuctionStatusActive).
		Order("end_at ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *auctionRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Auction, error) {
	var list []model.Auction
	if err := r.db.WithContext(ctx).
		Where("status = ? AND end_at <= ?", model.AuctionStatusActive, now).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *auctionRepository) ListEndingSoon(ctx context.Context, now time.Time, within time.Duration) ([]model.Auction, error) {
	var list []model.Auction
	if err := r.db.WithContext(ctx).
		Where("status = ? AND ending_notified = ? AND end_at > ? AND end_at <= ?",
			model.AuctionStatusActive, false, now, now.Add(within)).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CommitBid is the single authoritative check-and-set for the current price.
// The version guard rejects writes against a stale row; callers reload and
// revalidate when no row is affected.
func (r *auctionRepository) CommitBid(ctx context.Context, id, expectedVersion uint64, price int64, bidderUID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, model.AuctionStatusActive).
		Updates(map[string]interface{}{
			"current_price":      price,
			"current_bidder_uid": bidderUID,
			"bid_count":          gorm.Expr("bid_count + 1"),
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// BumpVersion serializes sealed bids, which change the bid count but never
// the visible price.
func (r *auctionRepository) BumpVersion(ctx context.Context, id, expectedVersion uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND version = ? AND status = ?", id, expectedVersion, model.AuctionStatusActive).
		Updates(map[string]interface{}{
			"bid_count": gorm.Expr("bid_count + 1"),
			"version":   gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *auctionRepository) MarkReserveMet(ctx context.Context, id uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND reserve_met = ?", id, false).
		Update("reserve_met", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *auctionRepository) MarkEndingNotified(ctx context.Context, id uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND ending_notified = ?", id, false).
		Update("ending_notified", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CloseIfActive finalizes the auction exactly once; a second close sees zero
// rows affected and becomes a no-op.
func (r *auctionRepository) CloseIfActive(ctx context.Context, id uint64, status model.AuctionStatus, finalPrice int64, winnerUID *string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND status = ?", id, model.AuctionStatusActive).
		Updates(map[string]interface{}{
			"status":             status,
			"current_price":      finalPrice,
			"current_bidder_uid": winnerUID,
			"version":            gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *auctionRepository) SetStatusIf(ctx context.Context, id uint64, expected, next model.AuctionStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Auction{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *auctionRepository) SetDB(db *gorm.DB) {
	r.db = db
}
