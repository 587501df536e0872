package discounts

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
	FindDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindRedemption(ctx context.Context, purchaseID, discountID uuid.UUID) (*models.DiscountRedemption, error)
	FindRedemptionForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.DiscountRedemption, error)
	// InsertRedemption reports false when a redemption for the same purchase
	// and discount already exists.
	InsertRedemption(ctx context.Context, redemption *models.DiscountRedemption) (bool, error)
	MarkFullyRedeemed(ctx context.Context, id uuid.UUID) error
	SetSubscription(ctx context.Context, id, subscriptionID uuid.UUID) error
	CountSucceededPayments(ctx context.Context, scope PaymentScope) (int64, error)
}

// PaymentScope selects the payments that count toward a redemption. A nil
// SubscriptionID scopes by purchase only.
type PaymentScope struct {
	PurchaseID       uuid.UUID
	SubscriptionID   *uuid.UUID
	ExcludePaymentID *uuid.UUID
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

func (r *repository) FindDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&discount).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &discount, nil
}

func (r *repository) FindRedemption(ctx context.Context, purchaseID, discountID uuid.UUID) (*models.DiscountRedemption, error) {
	var redemption models.DiscountRedemption
	err := r.db.WithContext(ctx).
		Where("purchase_id = ? AND discount_id = ?", purchaseID, discountID).
		First(&redemption).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &redemption, nil
}

func (r *repository) FindRedemptionForPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.DiscountRedemption, error) {
	var redemption models.DiscountRedemption
	err := r.db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at ASC").
		First(&redemption).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &redemption, nil
}

func (r *repository) InsertRedemption(ctx context.Context, redemption *models.DiscountRedemption) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_id"}, {Name: "discount_id"}},
			DoNothing: true,
		}).
		Create(redemption)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkFullyRedeemed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DiscountRedemption{}).
		Where("id = ?", id).
		Update("fully_redeemed", true).Error
}

func (r *repository) SetSubscription(ctx context.Context, id, subscriptionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DiscountRedemption{}).
		Where("id = ? AND subscription_id IS NULL", id).
		Update("subscription_id", subscriptionID).Error
}

func (r *repository) CountSucceededPayments(ctx context.Context, scope PaymentScope) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("purchase_id = ? AND status = ?", scope.PurchaseID, enums.PaymentStatusSucceeded)
	if scope.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *scope.SubscriptionID)
	}
	if scope.ExcludePaymentID != nil {
		query = query.Where("id <> ?", *scope.ExcludePaymentID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
