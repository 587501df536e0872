// Package discounts tracks how much of a discount's entitlement a purchase has
// consumed.
package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "discount repository required")
	}
	return &Ledger{repo: repo}, nil
}

// RedeemFeeCalculationDiscount finds or creates the redemption for the
// calculation's discount. Calculations without a discount or purchase yield
// nil.
func (l *Ledger) RedeemFeeCalculationDiscount(ctx context.Context, tx *gorm.DB, calc *models.FeeCalculation, subscriptionID *uuid.UUID) (*models.DiscountRedemption, error) {
	if calc == nil || calc.DiscountID == nil || calc.PurchaseID == nil {
		return nil, nil
	}
	repo := l.repo.WithTx(tx)

	existing, err := repo.FindRedemption(ctx, *calc.PurchaseID, *calc.DiscountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup discount redemption")
	}
	if existing != nil {
		return existing, nil
	}

	discount, err := repo.FindDiscount(ctx, *calc.DiscountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup discount")
	}
	if discount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}

	redemption := &models.DiscountRedemption{
		DiscountID:         discount.ID,
		PurchaseID:         *calc.PurchaseID,
		DiscountName:       discount.Name,
		DiscountCode:       discount.Code,
		DiscountAmount:     discount.Amount,
		DiscountAmountType: discount.AmountType,
		Duration:           discount.Duration,
		NumberOfPayments:   discount.NumberOfPayments,
		Livemode:           calc.Livemode,
	}
	if subscriptionID != nil {
		redemption.SubscriptionID = subscriptionID
	}
	inserted, err := repo.InsertRedemption(ctx, redemption)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert discount redemption")
	}
	if inserted {
		return redemption, nil
	}

	// Lost the race to a concurrent insert.
	existing, err = repo.FindRedemption(ctx, *calc.PurchaseID, *calc.DiscountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup discount redemption")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "discount redemption missing after upsert")
	}
	return existing, nil
}

// AssignSubscription scopes an unscoped redemption to the subscription its
// purchase started. Redemptions already bound to a subscription keep it.
func (l *Ledger) AssignSubscription(ctx context.Context, tx *gorm.DB, redemption *models.DiscountRedemption, subscriptionID uuid.UUID) error {
	if redemption == nil || redemption.SubscriptionID != nil {
		return nil
	}
	if err := l.repo.WithTx(tx).SetSubscription(ctx, redemption.ID, subscriptionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign redemption subscription")
	}
	redemption.SubscriptionID = &subscriptionID
	return nil
}

// IncrementPaymentCount applies payment to the redemption's duration policy.
// Once fully redeemed the redemption is never re-evaluated.
func (l *Ledger) IncrementPaymentCount(ctx context.Context, tx *gorm.DB, redemption *models.DiscountRedemption, payment *models.Payment) (*models.DiscountRedemption, error) {
	if redemption == nil {
		return nil, nil
	}
	if redemption.FullyRedeemed {
		return redemption, nil
	}
	if payment == nil || payment.Status != enums.PaymentStatusSucceeded || !countsToward(redemption, payment) {
		return redemption, nil
	}

	switch redemption.Duration {
	case enums.DiscountDurationForever:
		return redemption, nil
	case enums.DiscountDurationOnce:
		return l.markFullyRedeemed(ctx, tx, redemption)
	case enums.DiscountDurationNumberOfPayments:
		if redemption.NumberOfPayments == nil {
			return redemption, nil
		}
		scope := PaymentScope{
			PurchaseID:       redemption.PurchaseID,
			SubscriptionID:   redemption.SubscriptionID,
			ExcludePaymentID: &payment.ID,
		}
		prior, err := l.repo.WithTx(tx).CountSucceededPayments(ctx, scope)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count redemption payments")
		}
		if prior+1 >= int64(*redemption.NumberOfPayments) {
			return l.markFullyRedeemed(ctx, tx, redemption)
		}
		return redemption, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "unknown discount duration")
	}
}

// countsToward reports whether payment falls inside the redemption's scope.
func countsToward(redemption *models.DiscountRedemption, payment *models.Payment) bool {
	if payment.PurchaseID == nil || *payment.PurchaseID != redemption.PurchaseID {
		return false
	}
	if redemption.SubscriptionID == nil {
		return true
	}
	return payment.SubscriptionID != nil && *payment.SubscriptionID == *redemption.SubscriptionID
}

func (l *Ledger) markFullyRedeemed(ctx context.Context, tx *gorm.DB, redemption *models.DiscountRedemption) (*models.DiscountRedemption, error) {
	if err := l.repo.WithTx(tx).MarkFullyRedeemed(ctx, redemption.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark discount fully redeemed")
	}
	redemption.FullyRedeemed = true
	return redemption, nil
}
