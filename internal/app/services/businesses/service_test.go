package businesses

import (
	"context"
	"errors"
	"testing"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/storage/memory"
)

func TestRegisterStripsSelfAssertedVerification(t *testing.T) {
	svc := New(memory.New(), nil)

	created, err := svc.Register(context.Background(), "user-1", business.Business{
		Name:     "Fresh Goods GmbH",
		Verified: true,
		Local:    true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Verified {
		t.Fatalf("verification must not be self-asserted")
	}
	if created.OwnerUserID != "user-1" {
		t.Fatalf("owner = %q, want user-1", created.OwnerUserID)
	}

	if _, err := svc.Register(context.Background(), "user-1", business.Business{}); err == nil {
		t.Fatalf("expected error for missing name")
	}
}

func TestUpdateOwnerOnly(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	created, err := svc.Register(ctx, "user-1", business.Business{Name: "Fresh Goods GmbH"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	verified, err := svc.SetVerified(ctx, created.ID, true)
	if err != nil {
		t.Fatalf("set verified: %v", err)
	}

	if _, err := svc.Update(ctx, "user-2", created.ID, business.Business{Name: "Hijacked"}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	updated, err := svc.Update(ctx, "user-1", created.ID, business.Business{Name: "Fresh Goods & Co"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Fresh Goods & Co" {
		t.Fatalf("name = %q", updated.Name)
	}
	if !updated.Verified || updated.Verified != verified.Verified {
		t.Fatalf("update must preserve verification")
	}
	if updated.OwnerUserID != "user-1" {
		t.Fatalf("update must preserve ownership")
	}
}
