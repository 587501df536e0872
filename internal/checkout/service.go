package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/checkout/helpers"
	"github.com/angelmondragon/checkout-bookkeeper/internal/effects"
	"github.com/angelmondragon/checkout-bookkeeper/internal/feecalculations"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
)

var errSessionNotOpen = pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is not open")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type effectsCommitter interface {
	Commit(ctx context.Context, tx *gorm.DB, eff effects.Effects, source *outbox.SourceRef) error
}

type paymentIntentUpdater interface {
	UpdatePaymentIntent(ctx context.Context, id string, amount, applicationFeeAmount int64, livemode bool) (*stripe.PaymentIntent, error)
}

// EditResult is the session after an edit and the fee snapshot it is quoted
// against. Recomputed is set when the edit produced a new snapshot.
type EditResult struct {
	Session        *models.CheckoutSession
	FeeCalculation *models.FeeCalculation
	Recomputed     bool
}

// Service exposes the customer-facing checkout session operations.
type Service interface {
	EditSession(ctx context.Context, sessionID uuid.UUID, edit helpers.SessionEdit) (*EditResult, error)
	CompleteWithoutPayment(ctx context.Context, sessionID uuid.UUID) (*Result, error)
}

type service struct {
	tx         txRunner
	sessions   Repository
	fees       *feecalculations.Gate
	processor  paymentIntentUpdater
	reconciler *Reconciler
	committer  effectsCommitter
}

// NewService builds the checkout session service.
func NewService(
	tx txRunner,
	sessions Repository,
	fees *feecalculations.Gate,
	processor paymentIntentUpdater,
	reconciler *Reconciler,
	committer effectsCommitter,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("checkout session repository required")
	}
	if fees == nil {
		return nil, fmt.Errorf("fee calculation gate required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor client required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if committer == nil {
		return nil, fmt.Errorf("effects committer required")
	}
	return &service{
		tx:         tx,
		sessions:   sessions,
		fees:       fees,
		processor:  processor,
		reconciler: reconciler,
		committer:  committer,
	}, nil
}

// EditSession applies edit to an open session and runs the fee gate. When the
// edit changed the quote the session's payment intent is updated to match.
func (s *service) EditSession(ctx context.Context, sessionID uuid.UUID, edit helpers.SessionEdit) (*EditResult, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	edit, err := helpers.NormalizeSessionEdit(edit)
	if err != nil {
		return nil, err
	}

	var result *EditResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.sessions.WithTx(tx)
		session, err := repo.FindByID(ctx, sessionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout session")
		}
		if session == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		if session.Status != enums.CheckoutSessionStatusOpen {
			return errSessionNotOpen
		}

		applyEdit(session, edit)
		cat, err := loadCatalog(ctx, repo, session)
		if err != nil {
			return err
		}
		if err := checkOwnership(session, cat); err != nil {
			return err
		}
		if err := repo.Save(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
		}

		decision, err := s.fees.Resolve(ctx, tx, cat.feeInputs(session))
		if err != nil {
			return err
		}
		result = &EditResult{Session: session, FeeCalculation: decision.Calculation, Recomputed: decision.Created}

		if decision.Created && session.StripePaymentIntentID != nil && *session.StripePaymentIntentID != "" {
			total, ok := decision.Calculation.TotalDue()
			if !ok {
				return nil
			}
			if _, err := s.processor.UpdatePaymentIntent(ctx, *session.StripePaymentIntentID, total, decision.Calculation.ApplicationFeeAmount, session.Livemode); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteWithoutPayment finishes a zero-total session and commits its
// effects in the same transaction.
func (s *service) CompleteWithoutPayment(ctx context.Context, sessionID uuid.UUID) (*Result, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.reconciler.ProcessNonPaymentCheckoutSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := s.committer.Commit(ctx, tx, res.Effects, &outbox.SourceRef{CheckoutSessionID: &sessionID}); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyEdit(session *models.CheckoutSession, edit helpers.SessionEdit) {
	if edit.CustomerName != nil {
		session.CustomerName = edit.CustomerName
	}
	if edit.CustomerEmail != nil {
		session.CustomerEmail = edit.CustomerEmail
	}
	if edit.BillingAddress != nil {
		session.BillingAddress = edit.BillingAddress
	}
	if edit.PriceID != nil {
		session.PriceID = edit.PriceID
	}
	if edit.ClearDiscount {
		session.DiscountID = nil
	}
	if edit.DiscountID != nil {
		session.DiscountID = edit.DiscountID
	}
	if edit.Quantity != nil {
		session.Quantity = *edit.Quantity
	}
}

// checkOwnership rejects prices and discounts from another organization.
func checkOwnership(session *models.CheckoutSession, cat catalog) error {
	if cat.Product != nil && cat.Product.OrganizationID != session.OrganizationID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "price not found")
	}
	if cat.Discount != nil && (cat.Discount.OrganizationID != session.OrganizationID || !cat.Discount.Active) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
	}
	return nil
}
