package repository

import (
	"context"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
)

type BidRepository interface {
	Create(ctx context.Context, b *model.Bid) error
	ListByAuction(ctx context.Context, auctionID uint64) ([]model.Bid, error)
	ListBidderUIDs(ctx context.Context, auctionID uint64) ([]string, error)
	TopSealed(ctx context.Context, auctionID uint64) (*model.Bid, error)
	SwapWinning(ctx context.Context, auctionID, bidID uint64) error
	SetDB(db *gorm.DB)
}

type bidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) BidRepository {
	return &bidRepository{db: db}
}

func (r *bidRepository) Create(ctx context.Context, b *model.Bid) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *bidRepository) ListByAuction(ctx context.Context, auctionID uint64) ([]model.Bid, error) {
	var list []model.Bid
	if err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *bidRepository) ListBidderUIDs(ctx context.Context, auctionID uint64) ([]string, error) {
	var uids []string
	if err := r.db.WithContext(ctx).
		Model(&model.Bid{}).
		Distinct("bidder_uid").
		Where("auction_id = ?", auctionID).
		Pluck("bidder_uid", &uids).Error; err != nil {
		return nil, err
	}
	return uids, nil
}

// TopSealed returns the winning sealed bid: highest amount, earliest
// submission on exact ties, lowest id as the final disambiguator.
func (r *bidRepository) TopSealed(ctx context.Context, auctionID uint64) (*model.Bid, error) {
	var b model.Bid
	if err := r.db.WithContext(ctx).
		Where("auction_id = ? AND sealed = ?", auctionID, true).
		Order("amount DESC, created_at ASC, id ASC").
		First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// SwapWinning clears any previous winning flag for the auction and sets it on
// bidID, keeping at most one winning bid per auction.
func (r *bidRepository) SwapWinning(ctx context.Context, auctionID, bidID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Bid{}).
			Where("auction_id = ? AND winning = ?", auctionID, true).
			Update("winning", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Bid{}).
			Where("id = ?", bidID).
			Update("winning", true).Error
	})
}

func (r *bidRepository) SetDB(db *gorm.DB) {
	r.db = db
}
