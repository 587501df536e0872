package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/subscriptions"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// ProcessSetupIntentSucceeded stores the confirmed payment method and, for
// product sessions, starts the subscription. A session that already settled
// returns the subscription its setup intent created.
func (r *Reconciler) ProcessSetupIntentSucceeded(ctx context.Context, tx *gorm.DB, intent SetupIntentEvent) (*Result, error) {
	if strings.TrimSpace(intent.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setup intent id required")
	}
	repo := r.sessions.WithTx(tx)
	session, err := r.sessionForMetadata(ctx, repo, intent.Metadata)
	if err != nil {
		return nil, err
	}
	if session.Type == enums.CheckoutSessionTypeInvoice {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "setup intents are not supported for invoice checkout sessions")
	}
	if session.Status.IsTerminal() {
		return r.replaySetupIntent(ctx, tx, session, intent)
	}

	cat, err := loadCatalog(ctx, repo, session)
	if err != nil {
		return nil, err
	}

	var result *Result
	if session.Type == enums.CheckoutSessionTypeProduct {
		if cat.Price == nil || cat.Price.Type != enums.PriceTypeSubscription {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "setup intents require a subscription price")
		}
		result, err = r.bookkeep(ctx, tx, session, cat, intent.StripeCustomerID)
		if err != nil {
			return nil, err
		}
	} else {
		resolved, err := r.customers.Resolve(ctx, tx, session, intent.StripeCustomerID)
		if err != nil {
			return nil, err
		}
		result = &Result{Session: session, Organization: cat.Organization, Customer: resolved.Customer}
		result.Effects.Merge(resolved.Effects)
		session.CustomerID = &resolved.Customer.ID
	}
	customer := result.Customer

	if err := r.bindSetupIntentCustomer(ctx, intent, customer); err != nil {
		return nil, err
	}
	pm, err := r.setupIntentPaymentMethod(ctx, intent)
	if err != nil {
		return nil, err
	}
	method, err := r.paymentMethods.StoreDefault(ctx, tx, customer, pm)
	if err != nil {
		return nil, err
	}
	result.PaymentMethod = method

	switch session.Type {
	case enums.CheckoutSessionTypeAddPaymentMethod:
		if _, err := r.paymentMethods.Propagate(ctx, tx, method, session.TargetSubscriptionID, session.AutomaticallyUpdateSubscriptions); err != nil {
			return nil, err
		}
	case enums.CheckoutSessionTypeActivateSubscription:
		sub, err := r.activateTarget(ctx, tx, session, customer, method)
		if err != nil {
			return nil, err
		}
		result.Subscription = sub
	case enums.CheckoutSessionTypeProduct:
		if err := r.startSubscription(ctx, tx, result, cat, intent, method); err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("unsupported checkout session type %q", session.Type))
	}

	next, err := enums.NextCheckoutSessionStatus(session.Status, enums.CheckoutSessionStatusSucceeded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "checkout session transition")
	}
	session.Status = next
	session.StripeSetupIntentID = &intent.ID
	if err := repo.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
	}
	result.Effects.AddEvent(sessionCompletedEvent(session))
	if result.Purchase != nil && result.Purchase.Status == enums.PurchaseStatusPaid {
		result.Effects.AddEvent(purchaseCompletedEvent(result.Purchase))
	}
	return result, nil
}

func (r *Reconciler) replaySetupIntent(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, intent SetupIntentEvent) (*Result, error) {
	repo := r.sessions.WithTx(tx)
	org, err := repo.FindOrganization(ctx, session.OrganizationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load organization")
	}
	result := &Result{Session: session, Organization: org, Replayed: true}
	if session.CustomerID != nil {
		customer, err := repo.FindCustomer(ctx, *session.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
		}
		result.Customer = customer
	}
	sub, err := r.subscriptions.FindBySetupIntent(ctx, tx, intent.ID)
	if err != nil {
		return nil, err
	}
	// Activation keeps the target's original setup intent.
	if sub == nil && session.Type == enums.CheckoutSessionTypeActivateSubscription && session.TargetSubscriptionID != nil {
		sub, err = r.subscriptions.Load(ctx, tx, *session.TargetSubscriptionID)
		if err != nil {
			return nil, err
		}
	}
	result.Subscription = sub
	return result, nil
}

// bindSetupIntentCustomer attaches the resolved processor customer to a setup
// intent that was confirmed without one.
func (r *Reconciler) bindSetupIntentCustomer(ctx context.Context, intent SetupIntentEvent, customer *models.Customer) error {
	if strings.TrimSpace(intent.StripeCustomerID) != "" || customer.StripeCustomerID == nil {
		return nil
	}
	_, err := r.processor.UpdateSetupIntent(ctx, intent.ID, *customer.StripeCustomerID, intent.Livemode)
	return err
}

// setupIntentPaymentMethod fetches the intent when the event carried only a
// payment method reference.
func (r *Reconciler) setupIntentPaymentMethod(ctx context.Context, intent SetupIntentEvent) (*stripe.PaymentMethod, error) {
	pm := intent.PaymentMethod
	if pm != nil && pm.ID != "" && pm.Type != "" {
		return pm, nil
	}
	si, err := r.processor.GetSetupIntent(ctx, intent.ID, intent.Livemode)
	if err != nil {
		return nil, err
	}
	if si == nil || si.PaymentMethod == nil || si.PaymentMethod.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setup intent has no payment method")
	}
	return si.PaymentMethod, nil
}

func (r *Reconciler) activateTarget(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, customer *models.Customer, method *models.PaymentMethod) (*models.Subscription, error) {
	if session.TargetSubscriptionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activate subscription session has no target subscription")
	}
	sub, err := r.subscriptions.Load(ctx, tx, *session.TargetSubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.CustomerID != customer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "target subscription belongs to another customer")
	}
	return r.subscriptions.Activate(ctx, tx, subscriptions.ActivateInput{
		Subscription:               sub,
		PaymentMethod:              method,
		PreserveBillingCycleAnchor: session.PreserveBillingCycleAnchor,
	})
}

func (r *Reconciler) startSubscription(ctx context.Context, tx *gorm.DB, result *Result, cat catalog, intent SetupIntentEvent, method *models.PaymentMethod) error {
	purchase := result.Purchase
	hasHadTrial, err := r.subscriptions.HasHadTrial(ctx, tx, result.Customer.ID)
	if err != nil {
		return err
	}
	trialDays := cat.Price.TrialPeriodDays
	if purchase.TrialPeriodDays != nil {
		trialDays = purchase.TrialPeriodDays
	}

	created, err := r.subscriptions.Create(ctx, tx, subscriptions.CreateInput{
		Customer:      result.Customer,
		Price:         cat.Price,
		Product:       cat.Product,
		PaymentMethod: method,
		PurchaseID:    &purchase.ID,
		TrialEnd:      subscriptions.CalculateTrialEnd(r.now().UTC(), hasHadTrial, trialDays),
		Quantity:      result.Session.Quantity,
		Metadata:      purchase.Metadata,
		Name:          purchase.Name,
		Livemode:      result.Session.Livemode,
		SetupIntentID: intent.ID,
	})
	if err != nil {
		return err
	}
	result.Subscription = created.Subscription
	result.Effects.Merge(created.Effects)

	if err := r.transitionPurchase(ctx, tx, purchase, enums.PurchaseStatusPaid); err != nil {
		return err
	}
	return r.discounts.AssignSubscription(ctx, tx, result.Redemption, created.Subscription.ID)
}
