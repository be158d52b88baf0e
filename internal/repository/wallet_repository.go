package repository

import (
	"context"

	"github.com/souqhub/auction-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository interface {
	Credit(ctx context.Context, uid string, cents int64) error
	Debit(ctx context.Context, uid string, cents int64) error
	Get(ctx context.Context, uid string) (*model.Wallet, error)
	SetDB(db *gorm.DB)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Credit(ctx context.Context, uid string, cents int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"balance_cents": gorm.Expr("balance_cents + ?", cents)}),
	}).Create(&model.Wallet{UID: uid, BalanceCents: cents}).Error
}

// Debit fails with gorm.ErrRecordNotFound when the balance cannot cover the
// amount; the guard and the decrement are a single statement.
func (r *walletRepository) Debit(ctx context.Context, uid string, cents int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("uid = ? AND balance_cents >= ?", uid, cents).
		Update("balance_cents", gorm.Expr("balance_cents - ?", cents))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *walletRepository) Get(ctx context.Context, uid string) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).FirstOrCreate(&w, &model.Wallet{UID: uid}).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *walletRepository) SetDB(db *gorm.DB) {
	r.db = db
}
