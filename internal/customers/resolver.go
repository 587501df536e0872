package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/effects"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox/payloads"
)

// ProcessorClient creates the processor-side customer for new records.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, email, name string, livemode bool) (*stripe.Customer, error)
}

// Result is the customer a session resolved to and the effects its creation
// produced.
type Result struct {
	Customer *models.Customer
	Created  bool
	Effects  effects.Effects
}

// Resolver finds or creates exactly one customer for a checkout session.
type Resolver struct {
	repo      Repository
	processor ProcessorClient
}

func NewResolver(repo Repository, processor ProcessorClient) (*Resolver, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer repository required")
	}
	if processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "processor client required")
	}
	return &Resolver{repo: repo, processor: processor}, nil
}

// Resolve walks purchase customer, session customer, bound processor customer
// and finally creates a new customer. stripeCustomerID may be empty.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, session *models.CheckoutSession, stripeCustomerID string) (*Result, error) {
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}
	repo := r.repo.WithTx(tx)
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)

	existing, err := r.linkedCustomer(ctx, repo, session)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := r.checkBinding(ctx, repo, existing, stripeCustomerID); err != nil {
			return nil, err
		}
		return &Result{Customer: existing}, nil
	}

	if stripeCustomerID != "" {
		bound, err := repo.FindByStripeCustomerID(ctx, stripeCustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup customer by processor id")
		}
		if bound != nil {
			return &Result{Customer: bound}, nil
		}
	}

	return r.create(ctx, repo, session, stripeCustomerID)
}

func (r *Resolver) linkedCustomer(ctx context.Context, repo Repository, session *models.CheckoutSession) (*models.Customer, error) {
	if session.PurchaseID != nil {
		customer, err := repo.FindByPurchaseID(ctx, *session.PurchaseID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase customer")
		}
		if customer == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found for purchase")
		}
		return customer, nil
	}
	if session.CustomerID != nil {
		customer, err := repo.FindByID(ctx, *session.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup session customer")
		}
		if customer == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return customer, nil
	}
	return nil, nil
}

// checkBinding rejects a processor customer that differs from the one already
// linked. An unbound customer adopts the supplied id unless another customer
// already holds it.
func (r *Resolver) checkBinding(ctx context.Context, repo Repository, customer *models.Customer, stripeCustomerID string) error {
	if stripeCustomerID == "" {
		return nil
	}
	if customer.StripeCustomerID != nil {
		if *customer.StripeCustomerID != stripeCustomerID {
			return pkgerrors.New(pkgerrors.CodeConflict, "processor customer does not match the customer linked to this checkout session").
				WithDetails(map[string]any{
					"customer_id":        customer.ID,
					"stripe_customer_id": stripeCustomerID,
				})
		}
		return nil
	}

	holder, err := repo.FindByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup customer by processor id")
	}
	if holder != nil && holder.ID != customer.ID {
		return pkgerrors.New(pkgerrors.CodeConflict, "processor customer is bound to another customer")
	}
	if err := repo.BindStripeCustomer(ctx, customer.ID, stripeCustomerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bind processor customer")
	}
	customer.StripeCustomerID = &stripeCustomerID
	return nil
}

func (r *Resolver) create(ctx context.Context, repo Repository, session *models.CheckoutSession, stripeCustomerID string) (*Result, error) {
	email := ""
	if session.CustomerEmail != nil {
		email = strings.TrimSpace(*session.CustomerEmail)
	}
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no customer email")
	}
	name := email
	if session.CustomerName != nil && strings.TrimSpace(*session.CustomerName) != "" {
		name = strings.TrimSpace(*session.CustomerName)
	}

	pricingModel, err := repo.DefaultPricingModel(ctx, session.OrganizationID, session.Livemode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup default pricing model")
	}

	if stripeCustomerID == "" {
		created, err := r.processor.CreateCustomer(ctx, email, name, session.Livemode)
		if err != nil {
			return nil, err
		}
		if created == nil || created.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "processor returned no customer")
		}
		stripeCustomerID = created.ID
	}

	id := uuid.New()
	customer := &models.Customer{
		ID:                id,
		OrganizationID:    session.OrganizationID,
		Email:             email,
		Name:              name,
		ExternalID:        id.String(),
		StripeCustomerID:  &stripeCustomerID,
		BillingAddress:    session.BillingAddress,
		InvoiceNumberBase: invoiceNumberBase(id),
		Livemode:          session.Livemode,
	}
	if pricingModel != nil {
		customer.PricingModelID = &pricingModel.ID
	}
	if err := repo.Create(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer")
	}

	result := &Result{Customer: customer, Created: true}
	result.Effects.AddEvent(outbox.DomainEvent{
		EventType:     enums.EventCustomerCreated,
		AggregateType: enums.AggregateCustomer,
		AggregateID:   customer.ID,
		Livemode:      customer.Livemode,
		Unique:        true,
		Data: payloads.CustomerCreatedEvent{
			CustomerID:       customer.ID,
			OrganizationID:   customer.OrganizationID,
			Email:            customer.Email,
			StripeCustomerID: customer.StripeCustomerID,
		},
	})

	if pricingModel != nil {
		price, err := repo.DefaultPrice(ctx, pricingModel.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup default price")
		}
		if price != nil && price.UnitPrice == 0 {
			result.Effects.AddEvent(outbox.DomainEvent{
				EventType:     enums.EventCustomerDefaultPlanRequested,
				AggregateType: enums.AggregateCustomer,
				AggregateID:   customer.ID,
				Livemode:      customer.Livemode,
				Unique:        true,
				Data: payloads.CustomerDefaultPlanRequestedEvent{
					CustomerID:     customer.ID,
					OrganizationID: customer.OrganizationID,
					PricingModelID: pricingModel.ID,
					PriceID:        price.ID,
				},
			})
		}
	}
	return result, nil
}

// invoiceNumberBase derives the per-customer invoice prefix.
func invoiceNumberBase(id uuid.UUID) string {
	compact := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("INV-%s", compact[:8])
}
