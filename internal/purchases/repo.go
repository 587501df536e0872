package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Repository persists purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	Create(ctx context.Context, purchase *models.Purchase) error
	Delete(ctx context.Context, id uuid.UUID) error
	LinkSession(ctx context.Context, sessionID, purchaseID uuid.UUID) (bool, error)
	LinkedPurchaseID(ctx context.Context, sessionID uuid.UUID) (*uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseStatus, purchaseDate *time.Time) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Purchase{}).Error
}

// LinkSession stores the purchase on a session that has none yet. It reports
// false when another purchase was linked first.
func (r *repository) LinkSession(ctx context.Context, sessionID, purchaseID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND purchase_id IS NULL", sessionID).
		Update("purchase_id", purchaseID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) LinkedPurchaseID(ctx context.Context, sessionID uuid.UUID) (*uuid.UUID, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Select("id", "purchase_id").
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return session.PurchaseID, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PurchaseStatus, purchaseDate *time.Time) error {
	updates := map[string]any{"status": status}
	if purchaseDate != nil {
		updates["purchase_date"] = *purchaseDate
	}
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Updates(updates).Error
}
