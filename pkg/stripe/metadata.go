package stripe

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/checkout-bookkeeper/pkg/errors"
)

const (
	MetadataTypeKey              = "type"
	MetadataCheckoutSessionIDKey = "checkoutSessionId"
	MetadataTypeCheckoutSession  = "checkout_session"
)

// CheckoutSessionMetadata builds the metadata attached to payment and setup
// intents created for a checkout session.
func CheckoutSessionMetadata(sessionID uuid.UUID) map[string]string {
	return map[string]string{
		MetadataTypeKey:              MetadataTypeCheckoutSession,
		MetadataCheckoutSessionIDKey: sessionID.String(),
	}
}

// CheckoutSessionIDFromMetadata extracts the session id. Intents carrying any
// other metadata type are rejected.
func CheckoutSessionIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if len(metadata) == 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "processor metadata missing")
	}
	if kind := metadata[MetadataTypeKey]; kind != MetadataTypeCheckoutSession {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported processor metadata type %q", kind))
	}
	raw := metadata[MetadataCheckoutSessionIDKey]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid checkout session id %q", raw))
	}
	return id, nil
}
