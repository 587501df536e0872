package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db/models"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) CreateOnce(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return entry, nil
}

func (f *fakeRepository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func validCommand() Command {
	return Command{
		Type:           enums.LedgerEntryTypePaymentSettled,
		OrganizationID: uuid.New(),
		PaymentID:      uuid.New(),
		InvoiceID:      uuid.New(),
		AmountCents:    4250,
		Currency:       enums.CurrencyUSD,
		Metadata:       json.RawMessage(`{"note":"settled"}`),
	}
}

func TestService_Apply(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.LedgerEntry
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
		created = entry
		return entry, nil
	}

	cmd := validCommand()
	got, err := svc.Apply(context.Background(), nil, cmd)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if created == nil {
		t.Fatal("expected ledger entry to be created")
	}
	if created.PaymentID != cmd.PaymentID || created.Type != cmd.Type || created.AmountCents != cmd.AmountCents {
		t.Fatalf("unexpected ledger entry data: %+v", created)
	}
	if string(created.Metadata) != string(cmd.Metadata) {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
	if got != created {
		t.Fatalf("service should return created entry")
	}
}

func TestService_ApplyValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Command)
	}{
		{name: "missing organization", mutate: func(c *Command) { c.OrganizationID = uuid.Nil }},
		{name: "missing payment", mutate: func(c *Command) { c.PaymentID = uuid.Nil }},
		{name: "missing invoice", mutate: func(c *Command) { c.InvoiceID = uuid.Nil }},
		{name: "invalid type", mutate: func(c *Command) { c.Type = enums.LedgerEntryType("not_real") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validCommand()
			tc.mutate(&cmd)
			if _, err := svc.Apply(context.Background(), nil, cmd); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_ApplyRepoError(t *testing.T) {
	expectedErr := errors.New("boom")
	repo := &fakeRepository{createFn: func(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
		return nil, expectedErr
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	if _, err := svc.Apply(context.Background(), nil, validCommand()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}

func TestRepository_CreateOnceIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	cmd := validCommand()

	first, err := svc.Apply(context.Background(), db, cmd)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := svc.Apply(context.Background(), db, cmd)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replayed command created a second entry: %s vs %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.LedgerEntry{}).Where("payment_id = ?", cmd.PaymentID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}

	has, err := svc.HasEntry(context.Background(), cmd.PaymentID, enums.LedgerEntryTypePaymentSettled)
	if err != nil || !has {
		t.Fatalf("expected settled entry, got %v (%v)", has, err)
	}
}

func TestSettleAndFailPaymentCommands(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), OrganizationID: uuid.New(), InvoiceID: uuid.New(), Amount: 900, Currency: enums.CurrencyEUR}
	settle := SettlePayment(payment)
	if settle.Type != enums.LedgerEntryTypePaymentSettled || settle.AmountCents != 900 {
		t.Fatalf("unexpected settle command %+v", settle)
	}
	fail := FailPayment(payment)
	if fail.Type != enums.LedgerEntryTypePaymentFailed || fail.AmountCents != 0 {
		t.Fatalf("unexpected fail command %+v", fail)
	}
}
