package invoices

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
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error)
	LineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error)
	CountForCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)
	InvoiceNumberBase(ctx context.Context, customerID uuid.UUID) (string, error)
	// Create inserts the invoice and its line items, reporting false when an
	// invoice for the same purchase already exists.
	Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceLineItem) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &invoice, nil
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&invoice).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &invoice, nil
}

func (r *repository) LineItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceLineItem, error) {
	var items []models.InvoiceLineItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) CountForCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error
	return count, err
}

// InvoiceNumberBase returns the customer's invoice prefix, empty when the
// customer does not exist.
func (r *repository) InvoiceNumberBase(ctx context.Context, customerID uuid.UUID) (string, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Select("invoice_number_base").
		Where("id = ?", customerID).
		First(&customer).Error
	if err != nil {
		return "", notFoundAsNil(err)
	}
	return customer.InvoiceNumberBase, nil
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice, items []models.InvoiceLineItem) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_id"}},
			DoNothing: true,
		}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	for i := range items {
		items[i].InvoiceID = invoice.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
