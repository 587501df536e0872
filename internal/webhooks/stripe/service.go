package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/checkout"
	"github.com/angelmondragon/checkout-bookkeeper/internal/effects"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/metrics"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
	stripemeta "github.com/angelmondragon/checkout-bookkeeper/pkg/stripe"
)

type reconciler interface {
	ProcessChargeForCheckoutSession(ctx context.Context, tx *gorm.DB, charge checkout.ChargeEvent) (*checkout.Result, error)
	ProcessSetupIntentSucceeded(ctx context.Context, tx *gorm.DB, intent checkout.SetupIntentEvent) (*checkout.Result, error)
}

type effectsCommitter interface {
	Commit(ctx context.Context, tx *gorm.DB, eff effects.Effects, source *outbox.SourceRef) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type outcomeRecorder interface {
	Observe(eventType, outcome string, duration time.Duration)
}

type ServiceParams struct {
	Reconciler        reconciler
	Committer         effectsCommitter
	TransactionRunner txRunner
	Guard             eventGuard
	Logger            *logger.Logger
	Metrics           outcomeRecorder
}

// Service applies processor events to checkout sessions. Each event is
// reconciled and its effects committed inside one transaction.
type Service struct {
	reconciler reconciler
	committer  effectsCommitter
	txRunner   txRunner
	guard      eventGuard
	logg       *logger.Logger
	metrics    outcomeRecorder
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Committer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "effects committer required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	recorder := params.Metrics
	if recorder == nil {
		recorder = (*metrics.ReconcileMetrics)(nil)
	}
	return &Service{
		reconciler: params.Reconciler,
		committer:  params.Committer,
		txRunner:   params.TransactionRunner,
		guard:      params.Guard,
		logg:       params.Logger,
		metrics:    recorder,
		now:        time.Now,
	}, nil
}

type reconcileFunc func(ctx context.Context, tx *gorm.DB) (*checkout.Result, error)

// HandleEvent reconciles a single processor event and reports the outcome.
// Events for other flows are ignored. Errors carry pkg/errors codes so the
// caller can tell retryable failures apart.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (string, error) {
	if event == nil || event.Data == nil {
		return metrics.OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	started := s.now()
	eventType := string(event.Type)
	logCtx := s.logg.WithProcessorEvent(ctx, event.ID, eventType)

	run, err := s.route(event)
	if err != nil {
		s.logg.Error(logCtx, "failed to decode processor event", err)
		s.metrics.Observe(eventType, metrics.OutcomeFailed, s.now().Sub(started))
		return metrics.OutcomeFailed, err
	}
	if run == nil {
		s.logg.Info(logCtx, "ignoring processor event")
		s.metrics.Observe(eventType, metrics.OutcomeIgnored, s.now().Sub(started))
		return metrics.OutcomeIgnored, nil
	}

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		s.metrics.Observe(eventType, metrics.OutcomeFailed, s.now().Sub(started))
		return metrics.OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check processor event")
	}
	if seen {
		s.logg.Info(logCtx, "processor event already handled")
		s.metrics.Observe(eventType, metrics.OutcomeDuplicate, s.now().Sub(started))
		return metrics.OutcomeDuplicate, nil
	}

	var result *checkout.Result
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := run(ctx, tx)
		if err != nil {
			return err
		}
		source := &outbox.SourceRef{ProcessorEventID: event.ID}
		if res.Session != nil {
			source.CheckoutSessionID = &res.Session.ID
		}
		if err := s.committer.Commit(ctx, tx, res.Effects, source); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logg.Warn(logCtx, "failed to release idempotency key")
		}
		s.logg.Error(logCtx, "processor event reconciliation failed", err)
		s.metrics.Observe(eventType, metrics.OutcomeFailed, s.now().Sub(started))
		return metrics.OutcomeFailed, err
	}

	outcome := metrics.OutcomeApplied
	if result.Replayed {
		outcome = metrics.OutcomeDuplicate
	}
	if result.Session != nil {
		logCtx = s.logg.WithCheckoutSessionID(logCtx, result.Session.ID.String())
	}
	logCtx = s.logg.WithField(logCtx, "outcome", outcome)
	s.logg.Info(logCtx, "processor event reconciled")
	s.metrics.Observe(eventType, outcome, s.now().Sub(started))
	return outcome, nil
}

// route decodes the event object and picks the reconciliation step. A nil
// func means the event belongs to another flow.
func (s *Service) route(event *stripe.Event) (reconcileFunc, error) {
	switch event.Type {
	case stripe.EventTypeChargeSucceeded, stripe.EventTypeChargePending, stripe.EventTypeChargeFailed:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		if !forCheckoutSession(charge.Metadata) {
			return nil, nil
		}
		in, err := chargeEvent(&charge)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, tx *gorm.DB) (*checkout.Result, error) {
			return s.reconciler.ProcessChargeForCheckoutSession(ctx, tx, in)
		}, nil
	case stripe.EventTypeSetupIntentSucceeded:
		var intent stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode setup intent event")
		}
		if !forCheckoutSession(intent.Metadata) {
			return nil, nil
		}
		in := setupIntentEvent(&intent)
		return func(ctx context.Context, tx *gorm.DB) (*checkout.Result, error) {
			return s.reconciler.ProcessSetupIntentSucceeded(ctx, tx, in)
		}, nil
	default:
		return nil, nil
	}
}

func forCheckoutSession(metadata map[string]string) bool {
	return metadata[stripemeta.MetadataTypeKey] == stripemeta.MetadataTypeCheckoutSession
}

func chargeEvent(charge *stripe.Charge) (checkout.ChargeEvent, error) {
	status, err := enums.ParseChargeStatus(string(charge.Status))
	if err != nil {
		return checkout.ChargeEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported charge status")
	}
	in := checkout.ChargeEvent{
		ID:       charge.ID,
		Status:   status,
		Amount:   charge.Amount,
		Currency: enums.Currency(charge.Currency),
		Metadata: charge.Metadata,
		Created:  time.Unix(charge.Created, 0).UTC(),
		Livemode: charge.Livemode,
	}
	if charge.PaymentIntent != nil {
		in.PaymentIntentID = charge.PaymentIntent.ID
	}
	if charge.Customer != nil {
		in.StripeCustomerID = charge.Customer.ID
	}
	if charge.BillingDetails != nil {
		in.BillingName = charge.BillingDetails.Name
		in.BillingEmail = charge.BillingDetails.Email
	}
	return in, nil
}

func setupIntentEvent(intent *stripe.SetupIntent) checkout.SetupIntentEvent {
	in := checkout.SetupIntentEvent{
		ID:            intent.ID,
		PaymentMethod: intent.PaymentMethod,
		Metadata:      intent.Metadata,
		Livemode:      intent.Livemode,
	}
	if intent.Customer != nil {
		in.StripeCustomerID = intent.Customer.ID
	}
	return in
}
