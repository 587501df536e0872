// Package subscriptions creates and activates subscriptions started from
// checkout sessions.
package subscriptions

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/effects"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox/payloads"
)

// CreateInput captures the data required to start a subscription.
type CreateInput struct {
	Customer      *models.Customer
	Price         *models.Price
	Product       *models.Product
	PaymentMethod *models.PaymentMethod
	PurchaseID    *uuid.UUID
	Interval      enums.IntervalUnit
	IntervalCount int
	TrialEnd      *time.Time
	Quantity      int
	Metadata      json.RawMessage
	Name          string
	Livemode      bool
	SetupIntentID string
}

// CreateResult is the subscription for a setup intent. BillingRun is only set
// when a charge was scheduled by this call.
type CreateResult struct {
	Subscription  *models.Subscription
	BillingPeriod *models.BillingPeriod
	BillingRun    *models.BillingRun
	Created       bool
	Effects       effects.Effects
}

// ActivateInput attaches a payment method to an existing subscription.
type ActivateInput struct {
	Subscription               *models.Subscription
	PaymentMethod              *models.PaymentMethod
	PreserveBillingCycleAnchor bool
}

type Workflow struct {
	repo Repository
	now  func() time.Time
}

func NewWorkflow(repo Repository) (*Workflow, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repository required")
	}
	return &Workflow{repo: repo, now: time.Now}, nil
}

// Load returns the subscription, failing when it does not exist.
func (w *Workflow) Load(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Subscription, error) {
	sub, err := w.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// FindBySetupIntent returns the subscription a setup intent created, or nil.
func (w *Workflow) FindBySetupIntent(ctx context.Context, tx *gorm.DB, setupIntentID string) (*models.Subscription, error) {
	sub, err := w.repo.WithTx(tx).FindBySetupIntentID(ctx, strings.TrimSpace(setupIntentID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription by setup intent")
	}
	return sub, nil
}

// HasHadTrial reports whether the customer ever had a subscription with a
// trial end.
func (w *Workflow) HasHadTrial(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (bool, error) {
	count, err := w.repo.WithTx(tx).CountTrials(ctx, customerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count customer trials")
	}
	return count > 0, nil
}

// Create starts the subscription for a setup intent. A setup intent that
// already produced a subscription returns it untouched.
func (w *Workflow) Create(ctx context.Context, tx *gorm.DB, in CreateInput) (*CreateResult, error) {
	if in.Customer == nil || in.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and price are required")
	}
	setupIntentID := strings.TrimSpace(in.SetupIntentID)
	if setupIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setup intent id is required")
	}
	repo := w.repo.WithTx(tx)

	existing, err := repo.FindBySetupIntentID(ctx, setupIntentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription by setup intent")
	}
	if existing != nil {
		return &CreateResult{Subscription: existing}, nil
	}

	now := w.now().UTC()
	sub, period, err := w.buildSubscription(in, setupIntentID, now)
	if err != nil {
		return nil, err
	}

	created, err := repo.Create(ctx, sub)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
	}
	if !created {
		existing, err = repo.FindBySetupIntentID(ctx, setupIntentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup subscription by setup intent")
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription missing after upsert")
		}
		return &CreateResult{Subscription: existing}, nil
	}

	period.SubscriptionID = sub.ID
	if err := repo.CreateBillingPeriod(ctx, period); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create billing period")
	}

	result := &CreateResult{Subscription: sub, BillingPeriod: period, Created: true}
	if sub.Status != enums.SubscriptionStatusTrialing && in.Price.UnitPrice > 0 && in.PaymentMethod != nil {
		run := &models.BillingRun{
			SubscriptionID:  sub.ID,
			BillingPeriodID: period.ID,
			PaymentMethodID: in.PaymentMethod.ID,
			Status:          enums.BillingRunStatusScheduled,
			ScheduledFor:    now,
			Livemode:        sub.Livemode,
		}
		if err := repo.CreateBillingRun(ctx, run); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule billing run")
		}
		result.BillingRun = run
	}

	result.Effects.AddEvent(outbox.DomainEvent{
		EventType:     enums.EventSubscriptionCreated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Livemode:      sub.Livemode,
		Unique:        true,
		Data: payloads.SubscriptionCreatedEvent{
			SubscriptionID: sub.ID,
			CustomerID:     sub.CustomerID,
			PriceID:        sub.PriceID,
			Status:         sub.Status,
			TrialEnd:       sub.TrialEnd,
		},
	})
	return result, nil
}

func (w *Workflow) buildSubscription(in CreateInput, setupIntentID string, now time.Time) (*models.Subscription, *models.BillingPeriod, error) {
	interval := in.Interval
	if interval == "" && in.Price.IntervalUnit != nil {
		interval = *in.Price.IntervalUnit
	}
	count := in.IntervalCount
	if count <= 0 && in.Price.IntervalCount != nil {
		count = *in.Price.IntervalCount
	}
	if count <= 0 {
		count = 1
	}
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	status := enums.SubscriptionStatusActive
	if in.PaymentMethod == nil && in.Price.UnitPrice > 0 {
		status = enums.SubscriptionStatusIncomplete
	}
	start := now
	end, err := AddInterval(start, interval, count)
	if err != nil {
		return nil, nil, err
	}
	anchor := start
	trial := false
	if in.TrialEnd != nil && in.TrialEnd.After(now) {
		status = enums.SubscriptionStatusTrialing
		end = in.TrialEnd.UTC()
		anchor = end
		trial = true
	}

	name := strings.TrimSpace(in.Name)
	if name == "" && in.Product != nil {
		name = in.Product.Name
	}

	sub := &models.Subscription{
		OrganizationID:            in.Customer.OrganizationID,
		CustomerID:                in.Customer.ID,
		PriceID:                   in.Price.ID,
		PurchaseID:                in.PurchaseID,
		Name:                      name,
		Status:                    status,
		IntervalUnit:              interval,
		IntervalCount:             count,
		Quantity:                  quantity,
		TrialEnd:                  in.TrialEnd,
		CurrentBillingPeriodStart: start,
		CurrentBillingPeriodEnd:   end,
		BillingCycleAnchorDate:    anchor,
		StripeSetupIntentID:       &setupIntentID,
		Metadata:                  in.Metadata,
		Livemode:                  in.Livemode,
	}
	if in.PaymentMethod != nil {
		sub.DefaultPaymentMethodID = &in.PaymentMethod.ID
	}
	period := &models.BillingPeriod{
		StartDate:   start,
		EndDate:     end,
		Status:      enums.BillingPeriodStatusActive,
		TrialPeriod: trial,
		Livemode:    in.Livemode,
	}
	return sub, period, nil
}

// Activate attaches the payment method and moves subscriptions waiting on one
// to active. The billing cycle restarts now unless the anchor is preserved.
func (w *Workflow) Activate(ctx context.Context, tx *gorm.DB, in ActivateInput) (*models.Subscription, error) {
	sub := in.Subscription
	if sub == nil || in.PaymentMethod == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription and payment method are required")
	}
	if sub.Status == enums.SubscriptionStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is canceled")
	}
	now := w.now().UTC()

	if needsActivation(sub, now) {
		sub.Status = enums.SubscriptionStatusActive
		if !in.PreserveBillingCycleAnchor {
			end, err := AddInterval(now, sub.IntervalUnit, sub.IntervalCount)
			if err != nil {
				return nil, err
			}
			sub.BillingCycleAnchorDate = now
			sub.CurrentBillingPeriodStart = now
			sub.CurrentBillingPeriodEnd = end
		}
	}
	sub.DefaultPaymentMethodID = &in.PaymentMethod.ID

	if err := w.repo.WithTx(tx).UpdateActivation(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate subscription")
	}
	return sub, nil
}

// needsActivation covers incomplete subscriptions and trials that ended
// without a payment method.
func needsActivation(sub *models.Subscription, now time.Time) bool {
	switch sub.Status {
	case enums.SubscriptionStatusIncomplete:
		return true
	case enums.SubscriptionStatusTrialing:
		return sub.DefaultPaymentMethodID == nil && (sub.TrialEnd == nil || !sub.TrialEnd.After(now))
	default:
		return false
	}
}
