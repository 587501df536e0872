// Package invoices builds the first invoice for a purchase and settles
// invoice status from incoming payments.
package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// Invoice is an invoice with its line items.
type Invoice struct {
	Invoice   *models.Invoice
	LineItems []models.InvoiceLineItem
}

// Total is the sum of price times quantity over the line items.
func (i Invoice) Total() int64 {
	return Subtotal(i.LineItems)
}

func Subtotal(items []models.InvoiceLineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

type Materializer struct {
	repo Repository
	now  func() time.Time
}

func NewMaterializer(repo Repository) (*Materializer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice repository required")
	}
	return &Materializer{repo: repo, now: time.Now}, nil
}

// Load returns an invoice with its line items.
func (m *Materializer) Load(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) (*Invoice, error) {
	items, err := m.repo.WithTx(tx).LineItems(ctx, invoice.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice line items")
	}
	return &Invoice{Invoice: invoice, LineItems: items}, nil
}

// Find loads an invoice by id, failing when it does not exist.
func (m *Materializer) Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Invoice, error) {
	invoice, err := m.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return m.Load(ctx, tx, invoice)
}

// FindForPurchase returns the purchase's invoice, or nil when none exists.
func (m *Materializer) FindForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) (*Invoice, error) {
	invoice, err := m.repo.WithTx(tx).FindByPurchaseID(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase invoice")
	}
	if invoice == nil {
		return nil, nil
	}
	return m.Load(ctx, tx, invoice)
}

// CreateInitialInvoiceForPurchase returns the purchase's invoice, creating it
// with a single line item when none exists.
func (m *Materializer) CreateInitialInvoiceForPurchase(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, price *models.Price) (*Invoice, error) {
	if purchase == nil || price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase and price are required")
	}
	repo := m.repo.WithTx(tx)

	existing, err := repo.FindByPurchaseID(ctx, purchase.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase invoice")
	}
	if existing != nil {
		return m.Load(ctx, tx, existing)
	}

	base, err := repo.InvoiceNumberBase(ctx, purchase.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup invoice number base")
	}
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found for invoice")
	}
	prior, err := repo.CountForCustomer(ctx, purchase.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count customer invoices")
	}

	items := []models.InvoiceLineItem{initialLineItem(purchase, price)}
	invoice := &models.Invoice{
		OrganizationID: purchase.OrganizationID,
		CustomerID:     purchase.CustomerID,
		PurchaseID:     &purchase.ID,
		InvoiceNumber:  fmt.Sprintf("%s-%05d", base, prior+1),
		Type:           enums.InvoiceTypePurchase,
		Status:         enums.InvoiceStatusDraft,
		Currency:       price.Currency,
		Subtotal:       Subtotal(items),
		InvoiceDate:    m.now().UTC(),
		Livemode:       purchase.Livemode,
	}
	if country := purchase.BillingAddress.CountryCode(); country != "" {
		invoice.TaxCountry = &country
	}

	created, err := repo.Create(ctx, invoice, items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invoice")
	}
	if !created {
		existing, err = repo.FindByPurchaseID(ctx, purchase.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase invoice")
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice missing after upsert")
		}
		return m.Load(ctx, tx, existing)
	}
	return &Invoice{Invoice: invoice, LineItems: items}, nil
}

// SettleStatus moves the invoice to the status implied by a charge against
// total. Void and paid invoices are left alone.
func (m *Materializer) SettleStatus(ctx context.Context, tx *gorm.DB, invoice *Invoice, total, priorPaid, chargeAmount int64, charge enums.CheckoutSessionStatus) (enums.InvoiceStatus, error) {
	current := invoice.Invoice.Status
	if current == enums.InvoiceStatusPaid || current == enums.InvoiceStatusVoid {
		return current, nil
	}
	next := enums.InvoiceStatusForPayment(current, total, priorPaid, chargeAmount, charge)
	if next == current {
		return current, nil
	}
	if err := m.repo.WithTx(tx).UpdateStatus(ctx, invoice.Invoice.ID, next); err != nil {
		return current, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update invoice status")
	}
	invoice.Invoice.Status = next
	return next, nil
}

// MarkPaid settles an invoice that needs no payment.
func (m *Materializer) MarkPaid(ctx context.Context, tx *gorm.DB, invoice *Invoice) error {
	if invoice.Invoice.Status == enums.InvoiceStatusPaid {
		return nil
	}
	if err := m.repo.WithTx(tx).UpdateStatus(ctx, invoice.Invoice.ID, enums.InvoiceStatusPaid); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark invoice paid")
	}
	invoice.Invoice.Status = enums.InvoiceStatusPaid
	return nil
}

func initialLineItem(purchase *models.Purchase, price *models.Price) models.InvoiceLineItem {
	item := models.InvoiceLineItem{
		PriceID:     &purchase.PriceID,
		Description: purchase.Name,
		Quantity:    1,
		Price:       purchase.FirstInvoiceValue,
		Livemode:    purchase.Livemode,
	}
	if trialDays(purchase, price) > 0 {
		item.Description = purchase.Name + " - Trial Period"
		item.Price = 0
	}
	return item
}

// trialDays prefers the purchase's trial period over the price's.
func trialDays(purchase *models.Purchase, price *models.Price) int {
	if purchase.TrialPeriodDays != nil {
		return *purchase.TrialPeriodDays
	}
	if price != nil && price.TrialPeriodDays != nil {
		return *price.TrialPeriodDays
	}
	return 0
}
