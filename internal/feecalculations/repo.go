package feecalculations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
)

// Repository persists fee calculation snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, calc *models.FeeCalculation) error
	LatestForSession(ctx context.Context, sessionID uuid.UUID) (*models.FeeCalculation, error)
	LatestForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.FeeCalculation, error)
	AttachPurchase(ctx context.Context, id, purchaseID uuid.UUID) error
	SetTaxTransaction(ctx context.Context, id uuid.UUID, transactionID string) error
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

func (r *repository) Create(ctx context.Context, calc *models.FeeCalculation) error {
	return r.db.WithContext(ctx).Create(calc).Error
}

func (r *repository) LatestForSession(ctx context.Context, sessionID uuid.UUID) (*models.FeeCalculation, error) {
	return r.latest(ctx, "checkout_session_id = ?", sessionID)
}

func (r *repository) LatestForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.FeeCalculation, error) {
	return r.latest(ctx, "purchase_id = ?", purchaseID)
}

func (r *repository) latest(ctx context.Context, where string, id uuid.UUID) (*models.FeeCalculation, error) {
	var calc models.FeeCalculation
	err := r.db.WithContext(ctx).
		Where(where, id).
		Order("created_at DESC").
		Order("id DESC").
		First(&calc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &calc, nil
}

func (r *repository) AttachPurchase(ctx context.Context, id, purchaseID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.FeeCalculation{}).
		Where("id = ?", id).
		Update("purchase_id", purchaseID).Error
}

func (r *repository) SetTaxTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.FeeCalculation{}).
		Where("id = ?", id).
		Update("stripe_tax_transaction_id", transactionID).Error
}
