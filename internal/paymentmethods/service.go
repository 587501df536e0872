package paymentmethods

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

// Service mirrors processor payment methods onto customers.
type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method repository required")
	}
	return &Service{repo: repo}, nil
}

// StoreDefault upserts pm for the customer and makes it the default.
func (s *Service) StoreDefault(ctx context.Context, tx *gorm.DB, customer *models.Customer, pm *stripe.PaymentMethod) (*models.PaymentMethod, error) {
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer required")
	}
	if pm == nil || strings.TrimSpace(pm.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setup intent has no payment method")
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByStripeID(ctx, pm.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup payment method")
	}
	if existing != nil && existing.CustomerID != customer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment method belongs to another customer")
	}

	method, err := buildPaymentMethod(pm, customer.ID)
	if err != nil {
		return nil, err
	}
	if err := repo.Upsert(ctx, method); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment method")
	}
	stored, err := repo.FindByStripeID(ctx, pm.ID)
	if err != nil || stored == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment method")
	}
	if err := repo.SetDefault(ctx, customer.ID, stored.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default payment method")
	}
	stored.Default = true
	return stored, nil
}

// Propagate attaches method to the target subscription when one is given,
// otherwise to every subscription of the customer when all is set.
func (s *Service) Propagate(ctx context.Context, tx *gorm.DB, method *models.PaymentMethod, target *uuid.UUID, all bool) (int64, error) {
	if method == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}
	if target == nil && !all {
		return 0, nil
	}
	updated, err := s.repo.WithTx(tx).AttachToSubscriptions(ctx, method.CustomerID, target, method.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach payment method to subscriptions")
	}
	if target != nil && updated == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "target subscription not found for customer")
	}
	return updated, nil
}

func buildPaymentMethod(pm *stripe.PaymentMethod, customerID uuid.UUID) (*models.PaymentMethod, error) {
	billingDetails, err := marshalBillingDetails(pm)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal billing details")
	}
	method := &models.PaymentMethod{
		CustomerID:            customerID,
		StripePaymentMethodID: strings.TrimSpace(pm.ID),
		Type:                  methodType(pm.Type),
		BillingDetails:        billingDetails,
		Livemode:              pm.Livemode,
	}
	if pm.Card != nil {
		method.CardBrand = trimmedPtr(string(pm.Card.Brand))
		method.CardLast4 = trimmedPtr(pm.Card.Last4)
	}
	return method, nil
}

func methodType(t stripe.PaymentMethodType) enums.PaymentMethodType {
	parsed, err := enums.ParsePaymentMethodType(string(t))
	if err != nil {
		return enums.PaymentMethodTypeOther
	}
	return parsed
}

func marshalBillingDetails(pm *stripe.PaymentMethod) (json.RawMessage, error) {
	details := map[string]any{}
	if bd := pm.BillingDetails; bd != nil {
		if name := strings.TrimSpace(bd.Name); name != "" {
			details["name"] = name
		}
		if email := strings.TrimSpace(bd.Email); email != "" {
			details["email"] = email
		}
		if bd.Address != nil {
			details["address"] = bd.Address
		}
	}
	if len(details) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func trimmedPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
