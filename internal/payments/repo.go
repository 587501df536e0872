package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByChargeID(ctx context.Context, chargeID string) (*models.Payment, error)
	InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, amount int64) error
	// SucceededTotal sums successful payments on the invoice, leaving out
	// excludeChargeID.
	SucceededTotal(ctx context.Context, invoiceID uuid.UUID, excludeChargeID string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByChargeID(ctx context.Context, chargeID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("stripe_charge_id = ?", chargeID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_charge_id"}},
			DoNothing: true,
		}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "amount": amount}).Error
}

func (r *repository) SucceededTotal(ctx context.Context, invoiceID uuid.UUID, excludeChargeID string) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ? AND status = ?", invoiceID, enums.PaymentStatusSucceeded)
	if excludeChargeID != "" {
		query = query.Where("stripe_charge_id <> ?", excludeChargeID)
	}
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
