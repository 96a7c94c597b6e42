package capabilities

import (
	"context"
	"errors"
	"testing"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/storage"
	"github.com/localloop/marketplace/internal/app/storage/memory"
)

func fptr(v float64) *float64 { return &v }

func seedOwned(t *testing.T) (*memory.Store, business.Business) {
	t.Helper()
	store := memory.New()
	b, err := store.CreateBusiness(context.Background(), business.Business{Name: "Owner Co", OwnerUserID: "user-owner"})
	if err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return store, b
}

func validOffer(businessID string) capability.Capability {
	return capability.Capability{
		BusinessID:     businessID,
		CapabilityType: capability.TypeService,
		Category:       "Cleaning & Maintenance",
		Title:          "Office deep cleaning",
		PriceMin:       fptr(200),
		PriceMax:       fptr(600),
	}
}

func TestCreateValidation(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	bad := validOffer(owner.ID)
	bad.Category = "Alchemy"
	if _, err := svc.Create(ctx, "user-owner", bad); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}

	bad = validOffer(owner.ID)
	bad.PriceMin, bad.PriceMax = fptr(900), fptr(100)
	if _, err := svc.Create(ctx, "user-owner", bad); !errors.Is(err, ErrBadPriceRange) {
		t.Fatalf("expected ErrBadPriceRange, got %v", err)
	}

	if _, err := svc.Create(ctx, "someone-else", validOffer(owner.ID)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	created, err := svc.Create(ctx, "user-owner", validOffer(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Active {
		t.Fatalf("new capability should start active")
	}
}

func TestDeactivateKeepsRecord(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-owner", validOffer(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deactivated, err := svc.SetActive(ctx, "user-owner", created.ID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Active {
		t.Fatalf("capability should be inactive")
	}

	// Still on record, just invisible to active-only reads.
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Fatalf("deactivated capability must remain readable: %v", err)
	}
	active, err := svc.List(ctx, storage.CapabilityFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active capabilities, got %d", len(active))
	}
}

func TestUpdatePreservesOwnership(t *testing.T) {
	store, owner := seedOwned(t)
	svc := New(store, store, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "user-owner", validOffer(owner.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	edit := validOffer("other-business")
	edit.Title = "Office and warehouse cleaning"
	updated, err := svc.Update(ctx, "user-owner", created.ID, edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.BusinessID != owner.ID {
		t.Fatalf("update must not reassign the owning business")
	}
	if updated.Title != "Office and warehouse cleaning" {
		t.Fatalf("title = %q", updated.Title)
	}

	if _, err := svc.Update(ctx, "someone-else", created.ID, edit); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
