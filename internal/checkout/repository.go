package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
)

// Repository loads checkout sessions and the catalog rows they reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindByID locks the session row for the rest of the transaction on
	// postgres.
	FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error)
	FindOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	FindPrice(ctx context.Context, id uuid.UUID) (*models.Price, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	Save(ctx context.Context, session *models.CheckoutSession) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout session repository backed by db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CheckoutSession, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var session models.CheckoutSession
	if err := query.First(&session).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &session, nil
}

func (r *repository) FindOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return first[models.Organization](ctx, r.db, id)
}

func (r *repository) FindPrice(ctx context.Context, id uuid.UUID) (*models.Price, error) {
	return first[models.Price](ctx, r.db, id)
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return first[models.Product](ctx, r.db, id)
}

func (r *repository) FindDiscount(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	return first[models.Discount](ctx, r.db, id)
}

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return first[models.Customer](ctx, r.db, id)
}

// Save writes the fields reconciliation and edits are allowed to change.
func (r *repository) Save(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).
		Model(session).
		Select(
			"status",
			"price_id",
			"purchase_id",
			"customer_id",
			"discount_id",
			"customer_email",
			"customer_name",
			"billing_address",
			"quantity",
			"stripe_setup_intent_id",
		).
		Updates(session).Error
}

func first[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	var rec T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &rec, nil
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
