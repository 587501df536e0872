// Package checkout reconciles checkout sessions against processor events and
// the edits a customer makes before paying.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/customers"
	"github.com/angelmondragon/checkout-bookkeeper/internal/discounts"
	"github.com/angelmondragon/checkout-bookkeeper/internal/effects"
	"github.com/angelmondragon/checkout-bookkeeper/internal/feecalculations"
	"github.com/angelmondragon/checkout-bookkeeper/internal/invoices"
	"github.com/angelmondragon/checkout-bookkeeper/internal/ledger"
	"github.com/angelmondragon/checkout-bookkeeper/internal/paymentmethods"
	"github.com/angelmondragon/checkout-bookkeeper/internal/payments"
	"github.com/angelmondragon/checkout-bookkeeper/internal/purchases"
	"github.com/angelmondragon/checkout-bookkeeper/internal/subscriptions"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox/payloads"
	stripemeta "github.com/angelmondragon/checkout-bookkeeper/pkg/stripe"
)

// Processor is the slice of the processor client reconciliation calls.
type Processor interface {
	UpdatePaymentIntent(ctx context.Context, id string, amount, applicationFeeAmount int64, livemode bool) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string, livemode bool) (*stripe.PaymentIntent, error)
	GetSetupIntent(ctx context.Context, id string, livemode bool) (*stripe.SetupIntent, error)
	UpdateSetupIntent(ctx context.Context, id, customerID string, livemode bool) (*stripe.SetupIntent, error)
	CreateTaxTransaction(ctx context.Context, calculationID, reference string, livemode bool) (*stripe.TaxTransaction, error)
}

// ChargeEvent is the part of a processor charge reconciliation reads.
type ChargeEvent struct {
	ID               string
	PaymentIntentID  string
	Status           enums.ChargeStatus
	Amount           int64
	Currency         enums.Currency
	StripeCustomerID string
	BillingName      string
	BillingEmail     string
	Metadata         map[string]string
	Created          time.Time
	Livemode         bool
}

// SetupIntentEvent is a succeeded setup intent. PaymentMethod may be nil or
// an unexpanded reference.
type SetupIntentEvent struct {
	ID               string
	StripeCustomerID string
	PaymentMethod    *stripe.PaymentMethod
	Metadata         map[string]string
	Livemode         bool
}

// Result is the state a session reconciled to and the effects the caller
// must commit with the transaction.
type Result struct {
	Session        *models.CheckoutSession
	Organization   *models.Organization
	Customer       *models.Customer
	Purchase       *models.Purchase
	FeeCalculation *models.FeeCalculation
	Redemption     *models.DiscountRedemption
	Invoice        *invoices.Invoice
	Payment        *models.Payment
	PaymentMethod  *models.PaymentMethod
	Subscription   *models.Subscription
	// Replayed is set when the event had already been applied and nothing
	// changed.
	Replayed bool
	Effects  effects.Effects
}

// Dependencies are the collaborators a Reconciler composes.
type Dependencies struct {
	Sessions       Repository
	Customers      *customers.Resolver
	Purchases      *purchases.Materializer
	Fees           *feecalculations.Gate
	Discounts      *discounts.Ledger
	Invoices       *invoices.Materializer
	Payments       *payments.Service
	PaymentMethods *paymentmethods.Service
	Subscriptions  *subscriptions.Workflow
	Processor      Processor
}

// Reconciler drives checkout sessions from open to a terminal state. Every
// method runs inside the caller's transaction and returns its side effects
// instead of dispatching them.
type Reconciler struct {
	sessions       Repository
	customers      *customers.Resolver
	purchases      *purchases.Materializer
	fees           *feecalculations.Gate
	discounts      *discounts.Ledger
	invoices       *invoices.Materializer
	payments       *payments.Service
	paymentMethods *paymentmethods.Service
	subscriptions  *subscriptions.Workflow
	processor      Processor
	now            func() time.Time
}

func NewReconciler(deps Dependencies) (*Reconciler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout session repository required")
	case deps.Customers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer resolver required")
	case deps.Purchases == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase materializer required")
	case deps.Fees == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee calculation gate required")
	case deps.Discounts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "discount ledger required")
	case deps.Invoices == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invoice materializer required")
	case deps.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	case deps.PaymentMethods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method service required")
	case deps.Subscriptions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription workflow required")
	case deps.Processor == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "processor client required")
	}
	return &Reconciler{
		sessions:       deps.Sessions,
		customers:      deps.Customers,
		purchases:      deps.Purchases,
		fees:           deps.Fees,
		discounts:      deps.Discounts,
		invoices:       deps.Invoices,
		payments:       deps.Payments,
		paymentMethods: deps.PaymentMethods,
		subscriptions:  deps.Subscriptions,
		processor:      deps.Processor,
		now:            time.Now,
	}, nil
}

// catalog holds the rows a session references.
type catalog struct {
	Organization *models.Organization
	Price        *models.Price
	Product      *models.Product
	Discount     *models.Discount
}

func (c catalog) feeInputs(session *models.CheckoutSession) feecalculations.Inputs {
	return feecalculations.Inputs{
		Session:      session,
		Organization: c.Organization,
		Price:        c.Price,
		Discount:     c.Discount,
	}
}

func (r *Reconciler) loadSession(ctx context.Context, repo Repository, id uuid.UUID) (*models.CheckoutSession, error) {
	session, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found").
			WithDetails(map[string]any{"checkoutSessionId": id.String()})
	}
	return session, nil
}

func loadCatalog(ctx context.Context, repo Repository, session *models.CheckoutSession) (catalog, error) {
	var cat catalog
	org, err := repo.FindOrganization(ctx, session.OrganizationID)
	if err != nil {
		return cat, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load organization")
	}
	if org == nil {
		return cat, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
	}
	cat.Organization = org

	if session.PriceID != nil {
		price, err := repo.FindPrice(ctx, *session.PriceID)
		if err != nil {
			return cat, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load price")
		}
		if price == nil {
			return cat, pkgerrors.New(pkgerrors.CodeNotFound, "price not found")
		}
		product, err := repo.FindProduct(ctx, price.ProductID)
		if err != nil {
			return cat, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if product == nil {
			return cat, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		cat.Price, cat.Product = price, product
	}

	if session.DiscountID != nil {
		discount, err := repo.FindDiscount(ctx, *session.DiscountID)
		if err != nil {
			return cat, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load discount")
		}
		if discount == nil {
			return cat, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
		}
		cat.Discount = discount
	}
	return cat, nil
}

// ProcessPurchaseBookkeeping resolves the session's customer and purchase,
// ties the current fee snapshot to the purchase and redeems its discount.
func (r *Reconciler) ProcessPurchaseBookkeeping(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, stripeCustomerID string) (*Result, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	cat, err := loadCatalog(ctx, r.sessions.WithTx(tx), session)
	if err != nil {
		return nil, err
	}
	return r.bookkeep(ctx, tx, session, cat, stripeCustomerID)
}

func (r *Reconciler) bookkeep(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, cat catalog, stripeCustomerID string) (*Result, error) {
	if cat.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no price")
	}
	result := &Result{Session: session, Organization: cat.Organization}

	resolved, err := r.customers.Resolve(ctx, tx, session, stripeCustomerID)
	if err != nil {
		return nil, err
	}
	result.Customer = resolved.Customer
	result.Effects.Merge(resolved.Effects)
	session.CustomerID = &resolved.Customer.ID

	purchase, _, err := r.purchases.FindOrCreate(ctx, tx, purchases.Input{
		Session:  session,
		Customer: resolved.Customer,
		Price:    cat.Price,
		Product:  cat.Product,
	})
	if err != nil {
		return nil, err
	}
	result.Purchase = purchase

	decision, err := r.fees.Resolve(ctx, tx, cat.feeInputs(session))
	if err != nil {
		return nil, err
	}
	if decision.Calculation != nil {
		if err := r.fees.AttachPurchase(ctx, tx, decision.Calculation, purchase.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach fee calculation to purchase")
		}
		result.FeeCalculation = decision.Calculation

		redemption, err := r.discounts.RedeemFeeCalculationDiscount(ctx, tx, decision.Calculation, nil)
		if err != nil {
			return nil, err
		}
		result.Redemption = redemption
	}
	return result, nil
}

// ProcessChargeForCheckoutSession applies a processor charge to the product
// session named in its metadata. Invoice sessions are handed to
// ProcessChargeForInvoiceCheckoutSession. Charges for sessions that already
// settled are recorded as payments but never reopen the session.
func (r *Reconciler) ProcessChargeForCheckoutSession(ctx context.Context, tx *gorm.DB, charge ChargeEvent) (*Result, error) {
	repo := r.sessions.WithTx(tx)
	session, err := r.sessionForMetadata(ctx, repo, charge.Metadata)
	if err != nil {
		return nil, err
	}

	switch session.Type {
	case enums.CheckoutSessionTypeInvoice:
		return r.chargeInvoiceSession(ctx, tx, session, charge)
	case enums.CheckoutSessionTypeProduct:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("charges are not supported for %s checkout sessions", session.Type))
	}

	cat, err := loadCatalog(ctx, repo, session)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return r.replayProductCharge(ctx, tx, session, cat, charge)
	}

	next, err := enums.NextCheckoutSessionStatus(session.Status, enums.CheckoutSessionStatusForCharge(charge.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "checkout session transition")
	}
	applyBillingDetails(session, charge)

	if next == enums.CheckoutSessionStatusFailed {
		session.Status = next
		if err := repo.Save(ctx, session); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
		}
		return &Result{Session: session, Organization: cat.Organization}, nil
	}

	result, err := r.bookkeep(ctx, tx, session, cat, charge.StripeCustomerID)
	if err != nil {
		return nil, err
	}
	invoice, err := r.invoices.CreateInitialInvoiceForPurchase(ctx, tx, result.Purchase, cat.Price)
	if err != nil {
		return nil, err
	}
	result.Invoice = invoice

	session.Status = next
	if err := repo.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
	}

	if _, err := r.settle(ctx, tx, result, charge); err != nil {
		return nil, err
	}
	result.Effects.AddEvent(sessionCompletedEvent(session))
	if result.Purchase.Status == enums.PurchaseStatusPaid {
		result.Effects.AddEvent(purchaseCompletedEvent(result.Purchase))
	}
	return result, nil
}

// replayProductCharge handles a charge for a session that already left open,
// such as a redelivery or a pending charge that has since cleared.
func (r *Reconciler) replayProductCharge(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, cat catalog, charge ChargeEvent) (*Result, error) {
	result := &Result{Session: session, Organization: cat.Organization, Replayed: true}
	if session.CustomerID != nil {
		customer, err := r.sessions.WithTx(tx).FindCustomer(ctx, *session.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
		}
		result.Customer = customer
	}
	if session.PurchaseID == nil || strings.TrimSpace(charge.ID) == "" {
		return result, nil
	}

	purchase, err := r.purchases.Find(ctx, tx, *session.PurchaseID)
	if err != nil {
		return nil, err
	}
	result.Purchase = purchase

	invoice, err := r.invoices.FindForPurchase(ctx, tx, purchase.ID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return result, nil
	}
	result.Invoice = invoice

	result.FeeCalculation, err = r.fees.Latest(ctx, tx, session.ID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	recorded, err := r.settle(ctx, tx, result, charge)
	if err != nil {
		return nil, err
	}
	if recorded.Changed {
		result.Replayed = false
		if purchase.Status == enums.PurchaseStatusPaid {
			result.Effects.AddEvent(purchaseCompletedEvent(purchase))
		}
	}
	return result, nil
}

// ProcessChargeForInvoiceCheckoutSession applies a charge to an invoice
// session. The invoice is paid once successful payments cover its total.
func (r *Reconciler) ProcessChargeForInvoiceCheckoutSession(ctx context.Context, tx *gorm.DB, charge ChargeEvent) (*Result, error) {
	session, err := r.sessionForMetadata(ctx, r.sessions.WithTx(tx), charge.Metadata)
	if err != nil {
		return nil, err
	}
	if session.Type != enums.CheckoutSessionTypeInvoice {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session is not an invoice session")
	}
	return r.chargeInvoiceSession(ctx, tx, session, charge)
}

func (r *Reconciler) chargeInvoiceSession(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, charge ChargeEvent) (*Result, error) {
	repo := r.sessions.WithTx(tx)
	if session.InvoiceID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice checkout session has no invoice")
	}
	org, err := repo.FindOrganization(ctx, session.OrganizationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load organization")
	}
	invoice, err := r.invoices.Find(ctx, tx, *session.InvoiceID)
	if err != nil {
		return nil, err
	}
	customer, err := repo.FindCustomer(ctx, invoice.Invoice.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	result := &Result{Session: session, Organization: org, Customer: customer, Invoice: invoice}

	transitioned := false
	if !session.Status.IsTerminal() {
		next, err := enums.NextCheckoutSessionStatus(session.Status, enums.CheckoutSessionStatusForCharge(charge.Status))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "checkout session transition")
		}
		applyBillingDetails(session, charge)
		session.Status = next
		session.CustomerID = &invoice.Invoice.CustomerID
		if err := repo.Save(ctx, session); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update checkout session")
		}
		transitioned = true
	}

	if strings.TrimSpace(charge.ID) == "" {
		result.Replayed = !transitioned
		return result, nil
	}
	recorded, err := r.settle(ctx, tx, result, charge)
	if err != nil {
		return nil, err
	}
	result.Replayed = !transitioned && !recorded.Changed
	if transitioned {
		result.Effects.AddEvent(sessionCompletedEvent(session))
	}
	return result, nil
}

// settle records the charge as a payment and applies it to the invoice,
// purchase, discount and ledger. A charge that was already recorded with the
// same outcome changes nothing.
func (r *Reconciler) settle(ctx context.Context, tx *gorm.DB, result *Result, charge ChargeEvent) (*payments.Recorded, error) {
	invoice := result.Invoice
	target := payments.Target{
		Invoice:        invoice.Invoice,
		PurchaseID:     invoice.Invoice.PurchaseID,
		SubscriptionID: invoice.Invoice.SubscriptionID,
	}
	if result.Purchase != nil {
		target.PurchaseID = &result.Purchase.ID
	}
	recorded, err := r.payments.RecordCharge(ctx, tx, payments.Charge{
		ID:              charge.ID,
		PaymentIntentID: charge.PaymentIntentID,
		Amount:          charge.Amount,
		Currency:        charge.Currency,
		Status:          charge.Status,
		Created:         charge.Created,
		Livemode:        charge.Livemode,
	}, target)
	if err != nil {
		return nil, err
	}
	result.Payment = recorded.Payment
	if !recorded.Changed {
		return recorded, nil
	}

	total := invoice.Total()
	if result.FeeCalculation != nil {
		if due, ok := result.FeeCalculation.TotalDue(); ok {
			total = due
		}
	}
	if _, err := r.invoices.SettleStatus(ctx, tx, invoice, total, recorded.PriorPaid, charge.Amount, enums.CheckoutSessionStatusForCharge(charge.Status)); err != nil {
		return nil, err
	}

	payment := recorded.Payment
	switch payment.Status {
	case enums.PaymentStatusSucceeded:
		if err := r.transitionPurchase(ctx, tx, result.Purchase, enums.PurchaseStatusPaid); err != nil {
			return nil, err
		}
		if err := r.countRedemption(ctx, tx, result, payment); err != nil {
			return nil, err
		}
		if err := r.recordTaxTransaction(ctx, tx, result.FeeCalculation, payment); err != nil {
			return nil, err
		}
		result.Effects.AddLedgerCommand(ledger.SettlePayment(payment))
		result.Effects.AddEvent(paymentEvent(enums.EventPaymentSucceeded, payment))
	case enums.PaymentStatusProcessing:
		if err := r.transitionPurchase(ctx, tx, result.Purchase, enums.PurchaseStatusPending); err != nil {
			return nil, err
		}
	case enums.PaymentStatusFailed:
		if result.Session.Status.IsTerminal() && result.Session.Type == enums.CheckoutSessionTypeProduct {
			if err := r.transitionPurchase(ctx, tx, result.Purchase, enums.PurchaseStatusFailed); err != nil {
				return nil, err
			}
		}
		result.Effects.AddLedgerCommand(ledger.FailPayment(payment))
		result.Effects.AddEvent(paymentEvent(enums.EventPaymentFailed, payment))
	}
	return recorded, nil
}

// transitionPurchase leaves purchases that already finished alone.
func (r *Reconciler) transitionPurchase(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, next enums.PurchaseStatus) error {
	if purchase == nil || purchase.Status.IsTerminal() {
		return nil
	}
	return r.purchases.Transition(ctx, tx, purchase, next)
}

func (r *Reconciler) countRedemption(ctx context.Context, tx *gorm.DB, result *Result, payment *models.Payment) error {
	redemption := result.Redemption
	if redemption == nil {
		if result.FeeCalculation == nil {
			return nil
		}
		found, err := r.discounts.RedeemFeeCalculationDiscount(ctx, tx, result.FeeCalculation, nil)
		if err != nil {
			return err
		}
		redemption = found
	}
	updated, err := r.discounts.IncrementPaymentCount(ctx, tx, redemption, payment)
	if err != nil {
		return err
	}
	result.Redemption = updated
	return nil
}

func (r *Reconciler) recordTaxTransaction(ctx context.Context, tx *gorm.DB, calc *models.FeeCalculation, payment *models.Payment) error {
	if calc == nil || calc.StripeTaxCalculationID == nil || calc.StripeTaxTransactionID != nil {
		return nil
	}
	txn, err := r.processor.CreateTaxTransaction(ctx, *calc.StripeTaxCalculationID, payment.StripeChargeID, calc.Livemode)
	if err != nil {
		return err
	}
	if txn == nil {
		return nil
	}
	return r.fees.RecordTaxTransaction(ctx, tx, calc, txn.ID)
}

func (r *Reconciler) sessionForMetadata(ctx context.Context, repo Repository, metadata map[string]string) (*models.CheckoutSession, error) {
	id, err := stripemeta.CheckoutSessionIDFromMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return r.loadSession(ctx, repo, id)
}

func applyBillingDetails(session *models.CheckoutSession, charge ChargeEvent) {
	if name := strings.TrimSpace(charge.BillingName); name != "" {
		session.CustomerName = &name
	}
	if email := strings.TrimSpace(charge.BillingEmail); email != "" {
		session.CustomerEmail = &email
	}
}

func sessionCompletedEvent(session *models.CheckoutSession) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventCheckoutSessionCompleted,
		AggregateType: enums.AggregateCheckoutSession,
		AggregateID:   session.ID,
		Livemode:      session.Livemode,
		Unique:        true,
		Data: payloads.CheckoutSessionCompletedEvent{
			CheckoutSessionID: session.ID,
			Type:              session.Type,
			Status:            session.Status,
			CustomerID:        session.CustomerID,
			PurchaseID:        session.PurchaseID,
			InvoiceID:         session.InvoiceID,
		},
	}
}

func purchaseCompletedEvent(purchase *models.Purchase) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventPurchaseCompleted,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Livemode:      purchase.Livemode,
		Unique:        true,
		Data: payloads.PurchaseCompletedEvent{
			PurchaseID: purchase.ID,
			CustomerID: purchase.CustomerID,
			PriceID:    purchase.PriceID,
			Status:     purchase.Status,
		},
	}
}

func paymentEvent(eventType enums.OutboxEventType, payment *models.Payment) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Livemode:      payment.Livemode,
		Unique:        true,
		Data: payloads.PaymentStatusEvent{
			PaymentID:      payment.ID,
			InvoiceID:      payment.InvoiceID,
			PurchaseID:     payment.PurchaseID,
			StripeChargeID: payment.StripeChargeID,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			Status:         payment.Status,
		},
	}
}
