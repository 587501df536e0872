package customers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

// Repository exposes the customer lookups reconciliation needs. Lookups
// return nil, nil when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Customer, error)
	FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
	BindStripeCustomer(ctx context.Context, id uuid.UUID, stripeCustomerID string) error
	DefaultPricingModel(ctx context.Context, organizationID uuid.UUID, livemode bool) (*models.PricingModel, error)
	DefaultPrice(ctx context.Context, pricingModelID uuid.UUID) (*models.Price, error)
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &customer, nil
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Joins("JOIN purchases ON purchases.customer_id = customers.id").
		Where("purchases.id = ?", purchaseID).
		First(&customer).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &customer, nil
}

func (r *repository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", stripeCustomerID).First(&customer).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &customer, nil
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) BindStripeCustomer(ctx context.Context, id uuid.UUID, stripeCustomerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		Update("stripe_customer_id", stripeCustomerID).Error
}

func (r *repository) DefaultPricingModel(ctx context.Context, organizationID uuid.UUID, livemode bool) (*models.PricingModel, error) {
	var model models.PricingModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_default = ? AND livemode = ?", organizationID, true, livemode).
		First(&model).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &model, nil
}

func (r *repository) DefaultPrice(ctx context.Context, pricingModelID uuid.UUID) (*models.Price, error) {
	var price models.Price
	err := r.db.WithContext(ctx).
		Where("pricing_model_id = ? AND is_default = ? AND active = ? AND type = ?", pricingModelID, true, true, enums.PriceTypeSubscription).
		First(&price).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &price, nil
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
