package purchases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// Input carries the records a purchase is built from.
type Input struct {
	Session  *models.CheckoutSession
	Customer *models.Customer
	Price    *models.Price
	Product  *models.Product
}

type Materializer struct {
	repo Repository
	now  func() time.Time
}

func NewMaterializer(repo Repository) (*Materializer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repository required")
	}
	return &Materializer{repo: repo, now: time.Now}, nil
}

// Find loads a purchase, failing when it does not exist.
func (m *Materializer) Find(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Purchase, error) {
	purchase, err := m.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
	}
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return purchase, nil
}

// FindOrCreate returns the session's purchase, creating and linking one when
// the session has none. created reports whether a row was inserted.
func (m *Materializer) FindOrCreate(ctx context.Context, tx *gorm.DB, in Input) (purchase *models.Purchase, created bool, err error) {
	if in.Session == nil || in.Customer == nil || in.Price == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "session, customer and price are required")
	}
	repo := m.repo.WithTx(tx)

	if in.Session.PurchaseID != nil {
		existing, err := repo.FindByID(ctx, *in.Session.PurchaseID)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session purchase")
		}
		if existing == nil {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return existing, false, nil
	}

	shape, err := NewPurchaseInsert(in.Price)
	if err != nil {
		return nil, false, err
	}

	purchase = &models.Purchase{
		OrganizationID: in.Session.OrganizationID,
		CustomerID:     in.Customer.ID,
		PriceID:        in.Price.ID,
		Name:           purchaseName(in),
		Status:         enums.PurchaseStatusOpen,
		PriceType:      shape.PriceType(),
		Quantity:       1,
		BillingAddress: in.Session.BillingAddress,
		Metadata:       in.Session.OutputMetadata,
		Livemode:       in.Session.Livemode,
	}
	shape.apply(purchase)

	if err := repo.Create(ctx, purchase); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}
	linked, err := repo.LinkSession(ctx, in.Session.ID, purchase.ID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link purchase to checkout session")
	}
	if !linked {
		return m.adoptLinked(ctx, repo, in.Session, purchase.ID)
	}
	in.Session.PurchaseID = &purchase.ID
	return purchase, true, nil
}

// adoptLinked drops the purchase that lost the link and returns the one the
// session already points at.
func (m *Materializer) adoptLinked(ctx context.Context, repo Repository, session *models.CheckoutSession, orphanID uuid.UUID) (*models.Purchase, bool, error) {
	if err := repo.Delete(ctx, orphanID); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "discard unlinked purchase")
	}
	linkedID, err := repo.LinkedPurchaseID(ctx, session.ID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload session purchase")
	}
	if linkedID == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	existing, err := repo.FindByID(ctx, *linkedID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session purchase")
	}
	if existing == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	session.PurchaseID = &existing.ID
	return existing, false, nil
}

// Transition moves the purchase to next. Paid stamps the purchase date.
func (m *Materializer) Transition(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, next enums.PurchaseStatus) error {
	if purchase == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase required")
	}
	status, err := enums.NextPurchaseStatus(purchase.Status, next)
	if err != nil {
		if errors.Is(err, enums.ErrInvalidTransition) {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "purchase status transition")
		}
		return err
	}
	if status == purchase.Status {
		return nil
	}

	var purchaseDate *time.Time
	if status == enums.PurchaseStatusPaid {
		now := m.now().UTC()
		purchaseDate = &now
	}
	if err := m.repo.WithTx(tx).UpdateStatus(ctx, purchase.ID, status, purchaseDate); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update purchase status")
	}
	purchase.Status = status
	if purchaseDate != nil {
		purchase.PurchaseDate = purchaseDate
	}
	return nil
}

func purchaseName(in Input) string {
	if in.Session.OutputName != nil && strings.TrimSpace(*in.Session.OutputName) != "" {
		return strings.TrimSpace(*in.Session.OutputName)
	}
	if in.Price.Name != nil && strings.TrimSpace(*in.Price.Name) != "" {
		return strings.TrimSpace(*in.Price.Name)
	}
	if in.Product != nil {
		return in.Product.Name
	}
	return "Purchase"
}
