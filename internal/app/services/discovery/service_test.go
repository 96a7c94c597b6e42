package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/storage/memory"
)

type countingSearcher struct {
	calls  int
	result SearchResult
	err    error
}

func (c *countingSearcher) Search(_ context.Context, _ SearchRequest) (SearchResult, error) {
	c.calls++
	if c.err != nil {
		return SearchResult{}, c.err
	}
	return c.result, nil
}

func discovered(name, website, location string) lead.DiscoveredBusiness {
	return lead.DiscoveredBusiness{
		Name:       name,
		Category:   "Catering & Food Service",
		WebsiteURL: website,
		Location:   location,
		Confidence: 0.8,
	}
}

func TestSearchRejectsShortQueryBeforeExternalCall(t *testing.T) {
	store := memory.New()
	searcher := &countingSearcher{}
	svc := New(store, store, searcher, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	for _, query := range []string{"ab", "a-b", "  x! ?y  ", ""} {
		_, err := svc.SearchWebSuppliers(context.Background(), actor, query, "", "", 5)
		if !errors.Is(err, ErrQueryTooShort) {
			t.Fatalf("query %q: expected ErrQueryTooShort, got %v", query, err)
		}
	}
	if searcher.calls != 0 {
		t.Fatalf("expected 0 external calls, got %d", searcher.calls)
	}
}

func TestSearchNormalizesConfidence(t *testing.T) {
	store := memory.New()
	searcher := &countingSearcher{result: SearchResult{Businesses: []lead.DiscoveredBusiness{
		// An explicit zero is a real score, not an absent one, and survives.
		{Name: "Zero Score Co", Confidence: 0},
		{Name: "Negative Co", Confidence: -0.3},
		{Name: "Inflated Co", Confidence: 3.2},
		{Name: "Fine Co", Confidence: 0.55},
	}}}
	svc := New(store, store, searcher, nil)

	result, err := svc.SearchWebSuppliers(context.Background(), Actor{BusinessID: "biz-1"}, "local caterers", "", "", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := []float64{
		result.Businesses[0].Confidence,
		result.Businesses[1].Confidence,
		result.Businesses[2].Confidence,
		result.Businesses[3].Confidence,
	}
	want := []float64{0, 0, 1, 0.55}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("confidence[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSearchFailureLeavesPriorResults(t *testing.T) {
	store := memory.New()
	searcher := &countingSearcher{result: SearchResult{Businesses: []lead.DiscoveredBusiness{
		discovered("Alpha Catering", "https://alpha.example", "Leipzig"),
	}}}
	svc := New(store, store, searcher, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	if _, err := svc.SearchWebSuppliers(context.Background(), actor, "caterers leipzig", "", "", 5); err != nil {
		t.Fatalf("first search: %v", err)
	}

	searcher.err = fmt.Errorf("upstream timeout")
	_, err := svc.SearchWebSuppliers(context.Background(), actor, "caterers dresden", "", "", 5)
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}

	// The failed search must not clobber the earlier result set.
	summary, err := svc.SaveAllSearchResults(context.Background(), actor, "caterers leipzig", true)
	if err != nil {
		t.Fatalf("save results of prior search: %v", err)
	}
	if summary.Saved != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want {Saved:1 Failed:0}", summary)
	}
}

func TestSaveExternalLeadIdempotent(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}
	b := discovered("Beta Logistics", "https://beta.example", "Hamburg")

	first, created, err := svc.SaveExternalLead(context.Background(), actor, b, "logistics hamburg", true)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if !created {
		t.Fatalf("first save should create a lead")
	}

	second, created, err := svc.SaveExternalLead(context.Background(), actor, b, "logistics hamburg", true)
	if err != nil {
		t.Fatalf("re-save must not fail: %v", err)
	}
	if created {
		t.Fatalf("re-save should not create a second lead")
	}
	if second.ID != first.ID {
		t.Fatalf("re-save returned lead %s, want existing %s", second.ID, first.ID)
	}

	leads, err := store.ListLeads(context.Background(), actor.BusinessID)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected exactly one stored lead, got %d", len(leads))
	}
}

func TestSaveSkipsExistingDirectoryBusiness(t *testing.T) {
	store := memory.New()
	if _, err := store.CreateBusiness(context.Background(), business.Business{
		Name:       "Gamma Print Shop",
		WebsiteURL: "https://gamma.example/",
		Location:   "Berlin",
	}); err != nil {
		t.Fatalf("seed business: %v", err)
	}
	svc := New(store, store, nil, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	_, created, err := svc.SaveExternalLead(context.Background(), actor,
		discovered("Gamma Print Shop!", "https://gamma.example", "Munich"), "print shops", true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if created {
		t.Fatalf("directory duplicate must not become a lead")
	}

	leads, err := store.ListLeads(context.Background(), actor.BusinessID)
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected no stored leads, got %d", len(leads))
	}
}

func TestSaveAllCountsDuplicatesInNeitherTotal(t *testing.T) {
	store := memory.New()
	results := []lead.DiscoveredBusiness{
		discovered("One Supply", "https://one.example", "Bonn"),
		discovered("Two Supply", "https://two.example", "Bonn"),
		discovered("Three Supply", "https://three.example", "Bonn"),
		discovered("Four Supply", "https://four.example", "Bonn"),
		discovered("Five Supply", "https://five.example", "Bonn"),
	}
	searcher := &countingSearcher{result: SearchResult{Businesses: results}}
	svc := New(store, store, searcher, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	// Two of the five are already known leads.
	for _, b := range results[:2] {
		if _, created, err := svc.SaveExternalLead(context.Background(), actor, b, "supply bonn", true); err != nil || !created {
			t.Fatalf("seed lead %q: created=%v err=%v", b.Name, created, err)
		}
	}

	if _, err := svc.SearchWebSuppliers(context.Background(), actor, "supply bonn", "", "", 10); err != nil {
		t.Fatalf("search: %v", err)
	}
	summary, err := svc.SaveAllSearchResults(context.Background(), actor, "supply bonn", true)
	if err != nil {
		t.Fatalf("save all: %v", err)
	}
	if summary.Saved != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want {Saved:3 Failed:0}", summary)
	}
}

func TestSaveAllToleratesPartialFailure(t *testing.T) {
	store := memory.New()
	searcher := &countingSearcher{result: SearchResult{Businesses: []lead.DiscoveredBusiness{
		discovered("Solid Co", "https://solid.example", "Kiel"),
		{Name: "", Location: "Kiel"}, // unsaveable: no name
		discovered("Steady Co", "https://steady.example", "Kiel"),
	}}}
	svc := New(store, store, searcher, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	if _, err := svc.SearchWebSuppliers(context.Background(), actor, "suppliers kiel", "", "", 10); err != nil {
		t.Fatalf("search: %v", err)
	}
	summary, err := svc.SaveAllSearchResults(context.Background(), actor, "suppliers kiel", true)
	if err != nil {
		t.Fatalf("save all: %v", err)
	}
	if summary.Saved != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want {Saved:2 Failed:1}", summary)
	}
}

func TestSaveAllRequiresMatchingSearch(t *testing.T) {
	store := memory.New()
	svc := New(store, store, &countingSearcher{}, nil)

	_, err := svc.SaveAllSearchResults(context.Background(), Actor{BusinessID: "biz-1"}, "never searched", true)
	if !errors.Is(err, ErrNoSearchResults) {
		t.Fatalf("expected ErrNoSearchResults, got %v", err)
	}
}

func TestAdvanceClaimForwardOnly(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	saved, _, err := svc.SaveExternalLead(context.Background(), actor,
		discovered("Delta Works", "https://delta.example", "Essen"), "works essen", false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	pending, err := svc.AdvanceClaim(context.Background(), saved.ID, lead.ClaimPending)
	if err != nil {
		t.Fatalf("advance to pending: %v", err)
	}
	if pending.ClaimStatus != lead.ClaimPending {
		t.Fatalf("claim status = %s, want %s", pending.ClaimStatus, lead.ClaimPending)
	}

	claimed, err := svc.AdvanceClaim(context.Background(), saved.ID, lead.ClaimClaimed)
	if err != nil {
		t.Fatalf("advance to claimed: %v", err)
	}
	if claimed.ClaimStatus != lead.ClaimClaimed {
		t.Fatalf("claim status = %s, want %s", claimed.ClaimStatus, lead.ClaimClaimed)
	}

	if _, err := svc.AdvanceClaim(context.Background(), saved.ID, lead.ClaimPending); !errors.Is(err, ErrInvalidClaim) {
		t.Fatalf("expected ErrInvalidClaim on backward move, got %v", err)
	}
}

func TestSetLeadVisibilityPreservesClaimStatus(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil, nil)
	actor := Actor{UserID: "user-1", BusinessID: "biz-1"}

	saved, _, err := svc.SaveExternalLead(context.Background(), actor,
		discovered("Epsilon Foods", "https://epsilon.example", "Mainz"), "foods mainz", false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.AdvanceClaim(context.Background(), saved.ID, lead.ClaimPending); err != nil {
		t.Fatalf("advance: %v", err)
	}

	visible, err := svc.SetLeadVisibility(context.Background(), saved.ID, true)
	if err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	if !visible.VisibleInDirectory {
		t.Fatalf("lead should be visible")
	}
	if visible.ClaimStatus != lead.ClaimPending {
		t.Fatalf("claim status changed to %s", visible.ClaimStatus)
	}
}
