package needs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/internal/app/storage/memory"
)

func fptr(v float64) *float64 { return &v }

func seedOwned(t *testing.T) (*memory.Store, business.Business) {
	t.Helper()
	store := memory.New()
	b, err := store.CreateBusiness(context.Background(), business.Business{Name: "Buyer Co", OwnerUserID: "user-owner"})
	if err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return store, b
}

func validNeed(businessID string) need.Need {
	return need.Need{
		BusinessID: businessID,
		Category:   "Transportation & Logistics",
		Title:      "Weekly pallet delivery",
		BudgetMin:  fptr(300),
		BudgetMax:  fptr(800),
	}
}

func TestCreateDefaults(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)

	created, err := svc.Create(context.Background(), "user-owner", validNeed(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != need.StatusOpen {
		t.Fatalf("status = %s, want open", created.Status)
	}
	if created.Urgency != need.UrgencyMedium {
		t.Fatalf("urgency = %s, want medium default", created.Urgency)
	}

	bad := validNeed(owner.ID)
	bad.BudgetMin, bad.BudgetMax = fptr(900), fptr(100)
	if _, err := svc.Create(context.Background(), "user-owner", bad); !errors.Is(err, ErrBadBudgetRange) {
		t.Fatalf("expected ErrBadBudgetRange, got %v", err)
	}
}

func TestCloseIsForwardOnly(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-owner", validNeed(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Close(ctx, "user-owner", created.ID, "reopened"); !errors.Is(err, ErrUnknownNeedState) {
		t.Fatalf("expected ErrUnknownNeedState, got %v", err)
	}

	closed, err := svc.Close(ctx, "user-owner", created.ID, need.StatusFulfilled)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != need.StatusFulfilled {
		t.Fatalf("status = %s, want fulfilled", closed.Status)
	}

	// A closed need rejects further transitions and edits.
	if _, err := svc.Close(ctx, "user-owner", created.ID, need.StatusCancelled); !errors.Is(err, ErrClosedNeed) {
		t.Fatalf("expected ErrClosedNeed, got %v", err)
	}
	if _, err := svc.Update(ctx, "user-owner", created.ID, validNeed(owner.ID)); !errors.Is(err, ErrClosedNeed) {
		t.Fatalf("expected ErrClosedNeed on edit, got %v", err)
	}
}

func TestExpireDueSweep(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := validNeed(owner.ID)
	overdue.ExpiresAt = &past
	if _, err := svc.Create(ctx, "user-owner", overdue); err != nil {
		t.Fatalf("create overdue: %v", err)
	}
	current := validNeed(owner.ID)
	current.Title = "Monthly pallet delivery"
	current.ExpiresAt = &future
	if _, err := svc.Create(ctx, "user-owner", current); err != nil {
		t.Fatalf("create current: %v", err)
	}
	open := validNeed(owner.ID)
	open.Title = "Ad hoc courier runs"
	if _, err := svc.Create(ctx, "user-owner", open); err != nil {
		t.Fatalf("create open: %v", err)
	}

	expired, err := svc.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}

	remaining, err := svc.List(ctx, storage.NeedFilter{Status: need.StatusOpen})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("open needs = %d, want 2", len(remaining))
	}
}

func TestOwnerOnlyMutation(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-owner", validNeed(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Close(ctx, "someone-else", created.ID, need.StatusCancelled); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
