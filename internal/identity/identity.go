package identity

import (
	"context"

	"gorm.io/gorm"
)

// Contact is what the delivery channels need about a user.
type Contact struct {
	Email string
	Phone string
}

// Directory is the read-only profile lookup. The profile store itself is
// owned elsewhere; this service only reads contact columns. SetDB follows
// the repository pattern: the handle arrives after the async connect.
type Directory interface {
	Contact(ctx context.Context, uid string) (Contact, error)
	SetDB(db *gorm.DB)
}

type profileRow struct {
	UID   string `gorm:"column:uid;primaryKey"`
	Email string `gorm:"column:email"`
	Phone string `gorm:"column:phone"`
}

func (profileRow) TableName() string {
	return "user_profiles"
}

type dbDirectory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &dbDirectory{db: db}
}

func (d *dbDirectory) Contact(ctx context.Context, uid string) (Contact, error) {
	if d.db == nil {
		return Contact{}, gorm.ErrInvalidDB
	}
	var row profileRow
	if err := d.db.WithContext(ctx).First(&row, "uid = ?", uid).Error; err != nil {
		return Contact{}, err
	}
	return Contact{Email: row.Email, Phone: row.Phone}, nil
}

func (d *dbDirectory) SetDB(db *gorm.DB) {
	d.db = db
}
