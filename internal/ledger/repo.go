package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOnce(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOnce inserts the entry unless one already exists for the same
// payment and type, in which case the stored entry is returned.
func (r *repository) CreateOnce(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return entry, nil
	}
	return r.find(ctx, entry.PaymentID, entry.Type)
}

func (r *repository) find(ctx context.Context, paymentID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
	var existing models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("payment_id = ? AND type = ?", paymentID, entryType).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *repository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
