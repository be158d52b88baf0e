package repository

import (
	"context"
	"time"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepositRepository interface {
	Upsert(ctx context.Context, d *model.Deposit) error
	FindByID(ctx context.Context, id uint64) (*model.Deposit, error)
	FindByAuctionAndUser(ctx context.Context, auctionID uint64, userUID string) (*model.Deposit, error)
	FindByGatewayRef(ctx context.Context, ref string) (*model.Deposit, error)
	ListPaidByAuction(ctx context.Context, auctionID uint64) ([]model.Deposit, error)
	MarkPaidIfPending(ctx context.Context, id uint64) (int64, error)
	MarkUsedIfPaid(ctx context.Context, id uint64) (int64, error)
	MarkRefundedIfPaid(ctx context.Context, id uint64, reason string) (int64, error)
	SetDB(db *gorm.DB)
}

type depositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) DepositRepository {
	return &depositRepository{db: db}
}

// Upsert converges concurrent duplicate attempts for the same (auction, user)
// pair onto one row instead of failing on the unique index.
func (r *depositRepository) Upsert(ctx context.Context, d *model.Deposit) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "auction_id"}, {Name: "user_uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":      d.Amount,
			"status":      d.Status,
			"method":      d.Method,
			"gateway_ref": d.GatewayRef,
			"paid_at":     d.PaidAt,
		}),
	}).Create(d).Error
}

func (r *depositRepository) FindByID(ctx context.Context, id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *depositRepository) FindByAuctionAndUser(ctx context.Context, auctionID uint64, userUID string) (*model.Deposit, error) {
	var d model.Deposit
	if err := r.db.WithContext(ctx).
		Where("auction_id = ? AND user_uid = ?", auctionID, userUID).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *depositRepository) FindByGatewayRef(ctx context.Context, ref string) (*model.Deposit, error) {
	var d model.Deposit
	if err := r.db.WithContext(ctx).
		Where("gateway_ref = ?", ref).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *depositRepository) ListPaidByAuction(ctx context.Context, auctionID uint64) ([]model.Deposit, error) {
	var list []model.Deposit
	if err := r.db.WithContext(ctx).
		Where("auction_id = ? AND status = ?", auctionID, model.DepositStatusPaid).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *depositRepository) MarkPaidIfPending(ctx context.Context, id uint64) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Deposit{}).
		Where("id = ? AND status = ?", id, model.DepositStatusPending).
		Updates(map[string]interface{}{
			"status":  model.DepositStatusPaid,
			"paid_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *depositRepository) MarkUsedIfPaid(ctx context.Context, id uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Deposit{}).
		Where("id = ? AND status = ?", id, model.DepositStatusPaid).
		Update("status", model.DepositStatusUsed)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *depositRepository) MarkRefundedIfPaid(ctx context.Context, id uint64, reason string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Deposit{}).
		Where("id = ? AND status = ?", id, model.DepositStatusPaid).
		Updates(map[string]interface{}{
			"status":        model.DepositStatusRefunded,
			"refunded_at":   now,
			"refund_reason": reason,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *depositRepository) SetDB(db *gorm.DB) {
	r.db = db
}
