package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/setupintent"
	"github.com/stripe/stripe-go/v84/tax/calculation"
	"github.com/stripe/stripe-go/v84/tax/transaction"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client is the processor client used by reconciliation. It is bound to one
// Stripe environment and refuses calls for records of the other mode.
type Client struct {
	environment string
}

// NewClient initializes Stripe once with the configured key for the env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.TestSecretKey)
	if env == liveEnv {
		apiKey = strings.TrimSpace(cfg.LiveSecretKey)
	}
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{environment: env}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string, livemode bool) (*stripe.Customer, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return nil, dependencyError(err, "create stripe customer")
	}
	return cust, nil
}

func (c *Client) UpdatePaymentIntent(ctx context.Context, id string, amount, applicationFeeAmount int64, livemode bool) (*stripe.PaymentIntent, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentParams{
		Amount: stripe.Int64(amount),
	}
	if applicationFeeAmount > 0 {
		params.ApplicationFeeAmount = stripe.Int64(applicationFeeAmount)
	}
	params.Context = ctx
	pi, err := paymentintent.Update(id, params)
	if err != nil {
		return nil, dependencyError(err, "update payment intent")
	}
	return pi, nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, id string, livemode bool) (*stripe.PaymentIntent, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := paymentintent.Cancel(id, params)
	if err != nil {
		return nil, dependencyError(err, "cancel payment intent")
	}
	return pi, nil
}

// GetSetupIntent fetches the setup intent with its payment method expanded.
func (c *Client) GetSetupIntent(ctx context.Context, id string, livemode bool) (*stripe.SetupIntent, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.SetupIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")
	si, err := setupintent.Get(id, params)
	if err != nil {
		return nil, dependencyError(err, "get setup intent")
	}
	return si, nil
}

func (c *Client) UpdateSetupIntent(ctx context.Context, id, customerID string, livemode bool) (*stripe.SetupIntent, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.SetupIntentParams{
		Customer: stripe.String(customerID),
	}
	params.Context = ctx
	si, err := setupintent.Update(id, params)
	if err != nil {
		return nil, dependencyError(err, "update setup intent")
	}
	return si, nil
}

// TaxCalculationInput is the minimum Stripe Tax needs for a single line.
type TaxCalculationInput struct {
	Currency  string
	Amount    int64
	Reference string
	Address   types.BillingAddress
}

func (c *Client) CalculateTax(ctx context.Context, in TaxCalculationInput, livemode bool) (*stripe.TaxCalculation, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	address := &stripe.AddressParams{
		Country: stripe.String(in.Address.CountryCode()),
	}
	if in.Address.State != "" {
		address.State = stripe.String(in.Address.State)
	}
	if in.Address.PostalCode != "" {
		address.PostalCode = stripe.String(in.Address.PostalCode)
	}
	if in.Address.City != "" {
		address.City = stripe.String(in.Address.City)
	}
	if in.Address.Line1 != "" {
		address.Line1 = stripe.String(in.Address.Line1)
	}
	params := &stripe.TaxCalculationParams{
		Currency: stripe.String(in.Currency),
		LineItems: []*stripe.TaxCalculationLineItemParams{
			{
				Amount:    stripe.Int64(in.Amount),
				Reference: stripe.String(in.Reference),
			},
		},
		CustomerDetails: &stripe.TaxCalculationCustomerDetailsParams{
			Address:       address,
			AddressSource: stripe.String("billing"),
		},
	}
	params.Context = ctx
	calc, err := calculation.New(params)
	if err != nil {
		return nil, dependencyError(err, "calculate tax")
	}
	return calc, nil
}

func (c *Client) CreateTaxTransaction(ctx context.Context, calculationID, reference string, livemode bool) (*stripe.TaxTransaction, error) {
	if err := c.checkMode(livemode); err != nil {
		return nil, err
	}
	params := &stripe.TaxTransactionCreateFromCalculationParams{
		Calculation: stripe.String(calculationID),
		Reference:   stripe.String(reference),
	}
	params.Context = ctx
	txn, err := transaction.CreateFromCalculation(params)
	if err != nil {
		return nil, dependencyError(err, "create tax transaction")
	}
	return txn, nil
}

func (c *Client) checkMode(livemode bool) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stripe client not initialized")
	}
	if livemode != (c.environment == liveEnv) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("livemode=%t record cannot use the %s stripe environment", livemode, c.environment))
	}
	return nil
}

func dependencyError(err error, action string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != 429 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
