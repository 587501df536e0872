package paymentmethods

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
	FindByStripeID(ctx context.Context, stripePaymentMethodID string) (*models.PaymentMethod, error)
	Upsert(ctx context.Context, method *models.PaymentMethod) error
	SetDefault(ctx context.Context, customerID, paymentMethodID uuid.UUID) error
	// AttachToSubscriptions sets the default payment method on the customer's
	// live subscriptions, or only on subscriptionID when given.
	AttachToSubscriptions(ctx context.Context, customerID uuid.UUID, subscriptionID *uuid.UUID, paymentMethodID uuid.UUID) (int64, error)
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

func (r *repository) FindByStripeID(ctx context.Context, stripePaymentMethodID string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("stripe_payment_method_id = ?", stripePaymentMethodID).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &method, nil
}

func (r *repository) Upsert(ctx context.Context, method *models.PaymentMethod) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_payment_method_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "card_brand", "card_last4", "billing_details", "updated_at"}),
		}).
		Create(method).Error
}

func (r *repository) SetDefault(ctx context.Context, customerID, paymentMethodID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.PaymentMethod{}).
		Where("customer_id = ? AND id <> ?", customerID, paymentMethodID).
		Update("is_default", false).Error; err != nil {
		return err
	}
	return db.Model(&models.PaymentMethod{}).
		Where("id = ?", paymentMethodID).
		Update("is_default", true).Error
}

func (r *repository) AttachToSubscriptions(ctx context.Context, customerID uuid.UUID, subscriptionID *uuid.UUID, paymentMethodID uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("customer_id = ? AND status <> ?", customerID, enums.SubscriptionStatusCanceled)
	if subscriptionID != nil {
		query = query.Where("id = ?", *subscriptionID)
	}
	res := query.Update("default_payment_method_id", paymentMethodID)
	return res.RowsAffected, res.Error
}
