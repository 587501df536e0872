package helpers

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/types"
)

func TestNormalizeSessionEditTrimsFields(t *testing.T) {
	t.Parallel()
	name := "  Ada  "
	email := " Ada@Example.COM "
	edit, err := NormalizeSessionEdit(SessionEdit{
		CustomerName:   &name,
		CustomerEmail:  &email,
		BillingAddress: &types.BillingAddress{Country: " us ", State: "ca", City: " SF "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *edit.CustomerName != "Ada" {
		t.Fatalf("expected trimmed name, got %q", *edit.CustomerName)
	}
	if *edit.CustomerEmail != "ada@example.com" {
		t.Fatalf("expected lowered email, got %q", *edit.CustomerEmail)
	}
	if edit.BillingAddress.Country != "US" || edit.BillingAddress.State != "CA" || edit.BillingAddress.City != "SF" {
		t.Fatalf("unexpected address %+v", *edit.BillingAddress)
	}
}

func TestNormalizeSessionEditRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	badEmail := "not-an-email"
	zero := 0
	nilID := uuid.Nil
	discount := uuid.New()

	cases := map[string]SessionEdit{
		"email":    {CustomerEmail: &badEmail},
		"country":  {BillingAddress: &types.BillingAddress{Country: "USA"}},
		"quantity": {Quantity: &zero},
		"price":    {PriceID: &nilID},
		"discount": {DiscountID: &discount, ClearDiscount: true},
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeSessionEdit(edit)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
