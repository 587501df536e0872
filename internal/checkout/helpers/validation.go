package helpers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

var validate = validator.New()

// SessionEdit is a customer edit to an open checkout session. Nil fields are
// left unchanged.
type SessionEdit struct {
	CustomerName   *string
	CustomerEmail  *string
	BillingAddress *types.BillingAddress
	PriceID        *uuid.UUID
	DiscountID     *uuid.UUID
	ClearDiscount  bool
	Quantity       *int
}

// NormalizeSessionEdit trims the edit and rejects values a session cannot
// hold.
func NormalizeSessionEdit(edit SessionEdit) (SessionEdit, error) {
	if edit.CustomerName != nil {
		name := strings.TrimSpace(*edit.CustomerName)
		edit.CustomerName = &name
	}
	if edit.CustomerEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*edit.CustomerEmail))
		if err := validate.Var(email, "required,email"); err != nil {
			return edit, pkgerrors.New(pkgerrors.CodeValidation, "customer email is invalid")
		}
		edit.CustomerEmail = &email
	}
	if edit.BillingAddress != nil {
		addr := NormalizeAddress(*edit.BillingAddress)
		if len(addr.Country) != 2 {
			return edit, pkgerrors.New(pkgerrors.CodeValidation, "billing address country must be a two letter code")
		}
		edit.BillingAddress = &addr
	}
	if edit.Quantity != nil && *edit.Quantity < 1 {
		return edit, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if edit.PriceID != nil && *edit.PriceID == uuid.Nil {
		return edit, pkgerrors.New(pkgerrors.CodeValidation, "price id is invalid")
	}
	if edit.ClearDiscount && edit.DiscountID != nil {
		return edit, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be set and cleared together")
	}
	return edit, nil
}

// NormalizeAddress upper-cases the country and region codes.
func NormalizeAddress(addr types.BillingAddress) types.BillingAddress {
	addr.Name = strings.TrimSpace(addr.Name)
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.State = normalizeState(addr.State)
	addr.Country = normalizeState(addr.Country)
	return addr
}

func normalizeState(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
