package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindBySetupIntentID(ctx context.Context, setupIntentID string) (*models.Subscription, error)
	// Create reports false when a subscription for the same setup intent
	// already exists.
	Create(ctx context.Context, sub *models.Subscription) (bool, error)
	CreateBillingPeriod(ctx context.Context, period *models.BillingPeriod) error
	CreateBillingRun(ctx context.Context, run *models.BillingRun) error
	ListBillingPeriods(ctx context.Context, subscriptionID uuid.UUID) ([]models.BillingPeriod, error)
	CountTrials(ctx context.Context, customerID uuid.UUID) (int64, error)
	UpdateActivation(ctx context.Context, sub *models.Subscription) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &sub, nil
}

func (r *repository) FindBySetupIntentID(ctx context.Context, setupIntentID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("stripe_setup_intent_id = ?", setupIntentID).First(&sub).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &sub, nil
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_setup_intent_id"}},
			DoNothing: true,
		}).
		Create(sub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateBillingPeriod(ctx context.Context, period *models.BillingPeriod) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *repository) CreateBillingRun(ctx context.Context, run *models.BillingRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) ListBillingPeriods(ctx context.Context, subscriptionID uuid.UUID) ([]models.BillingPeriod, error) {
	var periods []models.BillingPeriod
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("start_date ASC").
		Find(&periods).Error
	return periods, err
}

func (r *repository) CountTrials(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("customer_id = ? AND trial_end IS NOT NULL", customerID).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateActivation(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":                       sub.Status,
			"default_payment_method_id":    sub.DefaultPaymentMethodID,
			"billing_cycle_anchor_date":    sub.BillingCycleAnchorDate,
			"current_billing_period_start": sub.CurrentBillingPeriodStart,
			"current_billing_period_end":   sub.CurrentBillingPeriodEnd,
			"updated_at":                   time.Now().UTC(),
		}).Error
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
