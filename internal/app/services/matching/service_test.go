package matching

import (
	"context"
	"testing"
	"time"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/storage/memory"
)

func seedSupplier(t *testing.T, store *memory.Store, name string) business.Business {
	t.Helper()
	b, err := store.CreateBusiness(context.Background(), business.Business{Name: name})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	return b
}

func TestFindSuppliersForNeed_ExcludesInactiveAndMismatchedCategory(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	supplier := seedSupplier(t, store, "Supplier Co")

	active, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Catering & Food Service",
		Title:      "Office lunches",
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create capability: %v", err)
	}
	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Catering & Food Service",
		Title:      "Retired menu",
		Active:     false,
	}); err != nil {
		t.Fatalf("create inactive capability: %v", err)
	}
	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Technology & IT",
		Title:      "Managed hosting",
		Active:     true,
	}); err != nil {
		t.Fatalf("create off-category capability: %v", err)
	}

	results, err := svc.FindSuppliersForNeed(context.Background(), need.Need{
		Category: "Catering & Food Service",
		Title:    "Weekly team lunch",
	}, Filters{})
	if err != nil {
		t.Fatalf("find suppliers: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(results))
	}
	if results[0].Capability.ID != active.ID {
		t.Fatalf("wrong candidate: %s", results[0].Capability.ID)
	}
}

func TestFindSuppliersForNeed_DeterministicOrdering(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	supplier := seedSupplier(t, store, "Supplier Co")

	for _, title := range []string{"a", "b", "c", "d"} {
		if _, err := store.CreateCapability(context.Background(), capability.Capability{
			BusinessID:   supplier.ID,
			Category:     "Construction & Trades",
			Title:        title,
			LeadTimeDays: len(title),
			Active:       true,
		}); err != nil {
			t.Fatalf("create capability: %v", err)
		}
	}

	n := need.Need{Category: "Construction & Trades", Urgency: need.UrgencyHigh, Title: "storefront remodel"}
	first, err := svc.FindSuppliersForNeed(context.Background(), n, Filters{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.FindSuppliersForNeed(context.Background(), n, Filters{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result size changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Capability.ID != second[i].Capability.ID || first[i].Score != second[i].Score {
			t.Fatalf("ordering not deterministic at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestFindSuppliersForNeed_RanksUrgentScenario(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	supplier := seedSupplier(t, store, "Supplier Co")

	cheapFast, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID:   supplier.ID,
		Category:     "Catering & Food Service",
		Title:        "Neighborhood catering",
		PriceMin:     fptr(600),
		PriceMax:     fptr(800),
		LeadTimeDays: 2,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("create capability: %v", err)
	}
	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID:   supplier.ID,
		Category:     "Catering & Food Service",
		Title:        "Banquet house",
		PriceMin:     fptr(4000),
		PriceMax:     fptr(6000),
		LeadTimeDays: 30,
		Active:       true,
	}); err != nil {
		t.Fatalf("create capability: %v", err)
	}

	results, err := svc.FindSuppliersForNeed(context.Background(), need.Need{
		Category:  "Catering & Food Service",
		Title:     "Urgent event catering",
		BudgetMin: fptr(500),
		BudgetMax: fptr(1000),
		Urgency:   need.UrgencyHigh,
	}, Filters{})
	if err != nil {
		t.Fatalf("find suppliers: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(results))
	}
	if results[0].Capability.ID != cheapFast.ID {
		t.Fatalf("expected cheap fast supplier first, got %s", results[0].Capability.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected strict ranking, got %v vs %v", results[0].Score, results[1].Score)
	}
}

func TestFindSuppliersForNeed_ExcludesClosedAndExpiredNeeds(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	supplier := seedSupplier(t, store, "Supplier Co")

	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Catering & Food Service",
		Title:      "Office lunches",
		Active:     true,
	}); err != nil {
		t.Fatalf("create capability: %v", err)
	}

	past := time.Now().Add(-24 * time.Hour)
	for _, tc := range []struct {
		name string
		need need.Need
	}{
		{"fulfilled", need.Need{Category: "Catering & Food Service", Title: "Team lunch", Status: need.StatusFulfilled}},
		{"cancelled", need.Need{Category: "Catering & Food Service", Title: "Team lunch", Status: need.StatusCancelled}},
		{"past expiry", need.Need{Category: "Catering & Food Service", Title: "Team lunch", Status: need.StatusOpen, ExpiresAt: &past}},
	} {
		results, err := svc.FindSuppliersForNeed(context.Background(), tc.need, Filters{})
		if err != nil {
			t.Fatalf("%s: find suppliers: %v", tc.name, err)
		}
		if len(results) != 0 {
			t.Fatalf("%s: got %d match(es), want 0", tc.name, len(results))
		}
	}

	open := need.Need{Category: "Catering & Food Service", Title: "Team lunch", Status: need.StatusOpen}
	results, err := svc.FindSuppliersForNeed(context.Background(), open, Filters{})
	if err != nil {
		t.Fatalf("open need: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("open need: got %d match(es), want 1", len(results))
	}
}

func TestFindSuppliersForNeed_EmptyNeedYieldsEmptyResult(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)

	results, err := svc.FindSuppliersForNeed(context.Background(), need.Need{}, Filters{})
	if err != nil {
		t.Fatalf("expected success for empty need, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestSearchCapabilities_FreeTextAndCategoryFallback(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	supplier := seedSupplier(t, store, "Supplier Co")

	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID:  supplier.ID,
		Category:    "Marketing & Creative",
		Title:       "Brand design studio",
		Description: "logo and identity work",
		Active:      true,
	}); err != nil {
		t.Fatalf("create capability: %v", err)
	}
	if _, err := store.CreateCapability(context.Background(), capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Marketing & Creative",
		Title:      "Print shop",
		Active:     true,
	}); err != nil {
		t.Fatalf("create capability: %v", err)
	}

	results, err := svc.SearchCapabilities(context.Background(), "logo design", "Marketing & Creative")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Brand design studio" {
		t.Fatalf("unexpected search results: %+v", results)
	}

	// A malformed category filter means no filter, never an error.
	all, err := svc.SearchCapabilities(context.Background(), "", "No Such Category")
	if err != nil {
		t.Fatalf("search with bogus category: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both capabilities, got %d", len(all))
	}
}
