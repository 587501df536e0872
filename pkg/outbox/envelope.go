package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceRef ties an event back to the processor delivery that caused it.
type SourceRef struct {
	ProcessorEventID  string     `json:"processorEventId,omitempty"`
	CheckoutSessionID *uuid.UUID `json:"checkoutSessionId,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     *SourceRef      `json:"source,omitempty"`
	Livemode   bool            `json:"livemode"`
	Data       json.RawMessage `json:"data"`
}
