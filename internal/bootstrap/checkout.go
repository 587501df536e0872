package bootstrap

import (
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/checkout"
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
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
)

// Processor is everything the checkout flows call on the payment processor.
type Processor interface {
	checkout.Processor
	customers.ProcessorClient
}

// Checkout holds the wired checkout components shared by the api and the
// worker.
type Checkout struct {
	Reconciler *checkout.Reconciler
	Committer  *effects.Committer
	Service    checkout.Service
	Fees       *feecalculations.Gate
}

// NewCheckout builds the reconciler and its collaborators on top of client.
// A nil tax calculator quotes every session without tax.
func NewCheckout(client *db.Client, processor Processor, tax feecalculations.TaxCalculator, logg *logger.Logger) (*Checkout, error) {
	conn := client.DB()

	reconciler, gate, err := newReconciler(conn, processor, tax)
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	committer, err := effects.NewCommitter(outbox.NewService(outbox.NewRepository(conn), logg), ledgerSvc)
	if err != nil {
		return nil, err
	}

	svc, err := checkout.NewService(client, checkout.NewRepository(conn), gate, processor, reconciler, committer)
	if err != nil {
		return nil, err
	}

	return &Checkout{
		Reconciler: reconciler,
		Committer:  committer,
		Service:    svc,
		Fees:       gate,
	}, nil
}

func newReconciler(conn *gorm.DB, processor Processor, tax feecalculations.TaxCalculator) (*checkout.Reconciler, *feecalculations.Gate, error) {
	resolver, err := customers.NewResolver(customers.NewRepository(conn), processor)
	if err != nil {
		return nil, nil, err
	}
	purchaseMat, err := purchases.NewMaterializer(purchases.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}
	gate, err := feecalculations.NewGate(feecalculations.NewRepository(conn), feecalculations.NewCalculator(tax))
	if err != nil {
		return nil, nil, err
	}
	discountLedger, err := discounts.NewLedger(discounts.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}
	invoiceMat, err := invoices.NewMaterializer(invoices.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}
	paymentSvc, err := payments.NewService(payments.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}
	methodSvc, err := paymentmethods.NewService(paymentmethods.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}
	workflow, err := subscriptions.NewWorkflow(subscriptions.NewRepository(conn))
	if err != nil {
		return nil, nil, err
	}

	reconciler, err := checkout.NewReconciler(checkout.Dependencies{
		Sessions:       checkout.NewRepository(conn),
		Customers:      resolver,
		Purchases:      purchaseMat,
		Fees:           gate,
		Discounts:      discountLedger,
		Invoices:       invoiceMat,
		Payments:       paymentSvc,
		PaymentMethods: methodSvc,
		Subscriptions:  workflow,
		Processor:      processor,
	})
	if err != nil {
		return nil, nil, err
	}
	return reconciler, gate, nil
}
