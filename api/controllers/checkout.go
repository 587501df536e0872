package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/checkout-bookkeeper/api/responses"
	"github.com/angelmondragon/checkout-bookkeeper/api/validators"
	checkoutsvc "github.com/angelmondragon/checkout-bookkeeper/internal/checkout"
	"github.com/angelmondragon/checkout-bookkeeper/internal/checkout/helpers"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

// EditCheckoutSession applies a customer edit to an open checkout session.
func EditCheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload editCheckoutSessionRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCheckoutSessionID(ctx, sessionID.String())
		}
		result, err := svc.EditSession(ctx, sessionID, payload.toEdit())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := editCheckoutSessionResponse{
			Session:    newCheckoutSessionResponse(result.Session),
			Recomputed: result.Recomputed,
		}
		if result.FeeCalculation != nil {
			resp.Quote = newQuoteResponse(result.FeeCalculation)
		}
		responses.WriteSuccess(w, resp)
	}
}

// CompleteCheckoutSessionWithoutPayment finishes a session whose total is zero.
func CompleteCheckoutSessionWithoutPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID, err := sessionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCheckoutSessionID(ctx, sessionID.String())
		}
		result, err := svc.CompleteWithoutPayment(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := completeCheckoutSessionResponse{
			Session: newCheckoutSessionResponse(result.Session),
		}
		if result.Purchase != nil {
			resp.PurchaseID = &result.Purchase.ID
			resp.PurchaseStatus = string(result.Purchase.Status)
		}
		if result.Subscription != nil {
			resp.SubscriptionID = &result.Subscription.ID
		}
		responses.WriteSuccess(w, resp)
	}
}

func sessionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "sessionId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout session id")
	}
	return id, nil
}

type editCheckoutSessionRequest struct {
	CustomerName   *string                `json:"customer_name,omitempty" validate:"omitempty,max=255"`
	CustomerEmail  *string                `json:"customer_email,omitempty" validate:"omitempty,max=320"`
	BillingAddress *billingAddressRequest `json:"billing_address,omitempty"`
	PriceID        *uuid.UUID             `json:"price_id,omitempty"`
	DiscountID     *uuid.UUID             `json:"discount_id,omitempty"`
	ClearDiscount  bool                   `json:"clear_discount,omitempty"`
	Quantity       *int                   `json:"quantity,omitempty" validate:"omitempty,min=1,max=10000"`
}

type billingAddressRequest struct {
	Name       string `json:"name,omitempty" validate:"max=255"`
	Line1      string `json:"line1,omitempty" validate:"max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city,omitempty" validate:"max=128"`
	State      string `json:"state,omitempty" validate:"max=64"`
	PostalCode string `json:"postal_code,omitempty" validate:"max=32"`
	Country    string `json:"country" validate:"required"`
}

func (r editCheckoutSessionRequest) toEdit() helpers.SessionEdit {
	edit := helpers.SessionEdit{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		PriceID:       r.PriceID,
		DiscountID:    r.DiscountID,
		ClearDiscount: r.ClearDiscount,
		Quantity:      r.Quantity,
	}
	if r.BillingAddress != nil {
		edit.BillingAddress = &types.BillingAddress{
			Name:       r.BillingAddress.Name,
			Line1:      r.BillingAddress.Line1,
			Line2:      r.BillingAddress.Line2,
			City:       r.BillingAddress.City,
			State:      r.BillingAddress.State,
			PostalCode: r.BillingAddress.PostalCode,
			Country:    r.BillingAddress.Country,
		}
	}
	return edit
}

type checkoutSessionResponse struct {
	ID             uuid.UUID             `json:"id"`
	OrganizationID uuid.UUID             `json:"organization_id"`
	Type           string                `json:"type"`
	Status         string                `json:"status"`
	PriceID        *uuid.UUID            `json:"price_id,omitempty"`
	DiscountID     *uuid.UUID            `json:"discount_id,omitempty"`
	CustomerName   *string               `json:"customer_name,omitempty"`
	CustomerEmail  *string               `json:"customer_email,omitempty"`
	BillingAddress *types.BillingAddress `json:"billing_address,omitempty"`
	Quantity       int                   `json:"quantity"`
	Livemode       bool                  `json:"livemode"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
}

func newCheckoutSessionResponse(session *models.CheckoutSession) *checkoutSessionResponse {
	if session == nil {
		return nil
	}
	return &checkoutSessionResponse{
		ID:             session.ID,
		OrganizationID: session.OrganizationID,
		Type:           string(session.Type),
		Status:         string(session.Status),
		PriceID:        session.PriceID,
		DiscountID:     session.DiscountID,
		CustomerName:   session.CustomerName,
		CustomerEmail:  session.CustomerEmail,
		BillingAddress: session.BillingAddress,
		Quantity:       session.Quantity,
		Livemode:       session.Livemode,
		ExpiresAt:      session.ExpiresAt,
	}
}

type quoteResponse struct {
	FeeCalculationID     uuid.UUID `json:"fee_calculation_id"`
	Currency             string    `json:"currency"`
	BaseAmount           int64     `json:"base_amount"`
	DiscountAmount       int64     `json:"discount_amount"`
	TaxAmount            int64     `json:"tax_amount"`
	ApplicationFeeAmount int64     `json:"application_fee_amount"`
	TotalDue             *int64    `json:"total_due,omitempty"`
}

func newQuoteResponse(calc *models.FeeCalculation) *quoteResponse {
	resp := &quoteResponse{
		FeeCalculationID:     calc.ID,
		Currency:             string(calc.Currency),
		BaseAmount:           calc.BaseAmount,
		DiscountAmount:       calc.DiscountAmountFixed,
		TaxAmount:            calc.TaxAmountFixed,
		ApplicationFeeAmount: calc.ApplicationFeeAmount,
	}
	if total, ok := calc.TotalDue(); ok {
		resp.TotalDue = &total
	}
	return resp
}

type editCheckoutSessionResponse struct {
	Session    *checkoutSessionResponse `json:"session"`
	Quote      *quoteResponse           `json:"quote,omitempty"`
	Recomputed bool                     `json:"recomputed"`
}

type completeCheckoutSessionResponse struct {
	Session        *checkoutSessionResponse `json:"session"`
	PurchaseID     *uuid.UUID               `json:"purchase_id,omitempty"`
	PurchaseStatus string                   `json:"purchase_status,omitempty"`
	SubscriptionID *uuid.UUID               `json:"subscription_id,omitempty"`
}
