package repository

import (
	"context"
	"time"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
)

type EscrowRepository interface {
	Create(ctx context.Context, t *model.EscrowTransaction) error
	FindByID(ctx context.Context, id uint64) (*model.EscrowTransaction, error)
	FindByAuction(ctx context.Context, auctionID uint64) (*model.EscrowTransaction, error)
	ListByUser(ctx context.Context, uid string) ([]model.EscrowTransaction, error)
	UpdateStatusIf(ctx context.Context, id uint64, expected, next model.EscrowStatus, extra map[string]interface{}) (int64, error)
	ListDueForRelease(ctx context.Context, now time.Time) ([]model.EscrowTransaction, error)
	SetDB(db *gorm.DB)
}

type escrowRepository struct {
	db *gorm.DB
}

func NewEscrowRepository(db *gorm.DB) EscrowRepository {
	return &escrowRepository{db: db}
}

func (r *escrowRepository) Create(ctx context.Context, t *model.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *escrowRepository) FindByID(ctx context.Context, id uint64) (*model.EscrowTransaction, error) {
	var t model.EscrowTransaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *escrowRepository) FindByAuction(ctx context.Context, auctionID uint64) (*model.EscrowTransaction, error) {
	var t model.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("id DESC").
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *escrowRepository) ListByUser(ctx context.Context, uid string) ([]model.EscrowTransaction, error) {
	var list []model.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("buyer_uid = ? OR seller_uid = ?", uid, uid).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateStatusIf writes the transition only when the persisted state still
// matches expected. Zero rows affected means another actor got there first.
func (r *escrowRepository) UpdateStatusIf(ctx context.Context, id uint64, expected, next model.EscrowStatus, extra map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.EscrowTransaction{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListDueForRelease returns inspections past their deadline with no open
// dispute. A dispute always keeps the transaction out of this scan.
func (r *escrowRepository) ListDueForRelease(ctx context.Context, now time.Time) ([]model.EscrowTransaction, error) {
	var list []model.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("status = ? AND dispute_open = ? AND inspection_deadline IS NOT NULL AND inspection_deadline <= ?",
			model.EscrowStatusInInspection, false, now).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *escrowRepository) SetDB(db *gorm.DB) {
	r.db = db
}
