// Package effects accumulates side effects produced while reconciling a
// processor event so they are only written once the caller commits.
package effects

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/internal/ledger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/outbox"
)

type Effects struct {
	Events         []outbox.DomainEvent
	LedgerCommands []ledger.Command
}

func (e *Effects) AddEvent(event outbox.DomainEvent) {
	e.Events = append(e.Events, event)
}

func (e *Effects) AddLedgerCommand(cmd ledger.Command) {
	e.LedgerCommands = append(e.LedgerCommands, cmd)
}

// Merge appends other's effects after e's, preserving order.
func (e *Effects) Merge(other Effects) {
	e.Events = append(e.Events, other.Events...)
	e.LedgerCommands = append(e.LedgerCommands, other.LedgerCommands...)
}

func (e Effects) IsEmpty() bool {
	return len(e.Events) == 0 && len(e.LedgerCommands) == 0
}

type eventEmitter interface {
	EmitAll(ctx context.Context, tx *gorm.DB, events []outbox.DomainEvent) error
}

// Committer writes effects into the caller's transaction.
type Committer struct {
	events eventEmitter
	ledger ledger.Service
}

func NewCommitter(events eventEmitter, ledgerSvc ledger.Service) (*Committer, error) {
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &Committer{events: events, ledger: ledgerSvc}, nil
}

// Commit stores events in the outbox and applies ledger commands. Events
// without a source are stamped with source.
func (c *Committer) Commit(ctx context.Context, tx *gorm.DB, eff Effects, source *outbox.SourceRef) error {
	if eff.IsEmpty() {
		return nil
	}
	events := make([]outbox.DomainEvent, len(eff.Events))
	for i, event := range eff.Events {
		if event.Source == nil {
			event.Source = source
		}
		events[i] = event
	}
	if err := c.events.EmitAll(ctx, tx, events); err != nil {
		return fmt.Errorf("emit events: %w", err)
	}
	for _, cmd := range eff.LedgerCommands {
		if _, err := c.ledger.Apply(ctx, tx, cmd); err != nil {
			return fmt.Errorf("apply ledger command %s: %w", cmd.Type, err)
		}
	}
	return nil
}
