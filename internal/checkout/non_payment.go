package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// ProcessNonPaymentCheckoutSession completes a product session whose quoted
// total is exactly zero without collecting a payment.
func (r *Reconciler) ProcessNonPaymentCheckoutSession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*Result, error) {
	repo := r.sessions.WithTx(tx)
	session, err := r.loadSession(ctx, repo, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != enums.CheckoutSessionStatusOpen {
		return nil, errSessionNotOpen
	}
	if session.Type != enums.CheckoutSessionTypeProduct {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("non-payment completion is not supported for %s checkout sessions", session.Type))
	}

	cat, err := loadCatalog(ctx, repo, session)
	if err != nil {
		return nil, err
	}
	if cat.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no price")
	}
	if cat.Price.Type == enums.PriceTypeSubscription {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "non-payment completion is not supported for subscription prices")
	}

	calc, err := r.fees.Latest(ctx, tx, session.ID)
	if err != nil {
		return nil, err
	}
	total, ok := calc.TotalDue()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session total due is unknown")
	}
	if total != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout session total due is %d, expected 0", total)).
			WithDetails(map[string]any{"totalDue": total})
	}

	result, err := r.bookkeep(ctx, tx, session, cat, "")
	if err != nil {
		return nil, err
	}
	if err := r.transitionPurchase(ctx, tx, result.Purchase, enums.PurchaseStatusPaid); err != nil {
		return nil, err
	}
	invoice, err := r.invoices.CreateInitialInvoiceForPurchase(ctx, tx, result.Purchase, cat.Price)
	if err != nil {
		return nil, err
	}
	if err := r.invoices.MarkPaid(ctx, tx, invoice); err != nil {
		return nil, err
	}
	result.Invoice = invoice

	if session.StripePaymentIntentID != nil && *session.StripePaymentIntentID != "" {
		if _, err := r.processor.CancelPaymentIntent(ctx, *session.StripePaymentIntentID, session.Livemode); err != nil {
			return nil, err
		}
	}

	next, err := enums.NextCheckoutSessionStatus(session.Status, enums.CheckoutSessionStatusSucceeded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "checkout session transition")
	}
	session.Status = next
	if err := repo.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
	}

	result.Effects.AddEvent(sessionCompletedEvent(session))
	result.Effects.AddEvent(purchaseCompletedEvent(result.Purchase))
	return result, nil
}
