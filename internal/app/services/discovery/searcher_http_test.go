package discovery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Fatalf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req SearchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "organic bakeries" || req.Location != "Bremen" || req.Limit != 4 {
			t.Fatalf("unexpected request %+v", req)
		}
		w.Write([]byte(`{
			"businesses": [
				{
					"name": "Kornblume Bakery",
					"description": "Organic sourdough wholesale",
					"category": "Catering & Food Service",
					"website_url": "https://kornblume.example",
					"location": "Bremen",
					"contact": {"email": "hi@kornblume.example", "phone": "+49 421 123"},
					"citations": ["https://source.example/a"],
					"confidence": 0.9
				},
				{"name": "Unscored Mill", "location": "Bremen"}
			],
			"citations": ["https://source.example/a", "https://source.example/b"]
		}`))
	}))
	defer server.Close()

	searcher, err := NewHTTPSearcher(server.Client(), server.URL, "key-123", 100, nil)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}

	result, err := searcher.Search(context.Background(), SearchRequest{
		Query:    "organic bakeries",
		Location: "Bremen",
		Limit:    4,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(result.Businesses) != 2 {
		t.Fatalf("expected 2 businesses, got %d", len(result.Businesses))
	}
	first := result.Businesses[0]
	if first.Name != "Kornblume Bakery" || first.Contact.Email != "hi@kornblume.example" || first.Confidence != 0.9 {
		t.Fatalf("unexpected first business %+v", first)
	}
	if len(first.Citations) != 1 {
		t.Fatalf("expected 1 citation on first business, got %d", len(first.Citations))
	}
	if result.Businesses[1].Confidence != 0.7 {
		t.Fatalf("missing confidence should default to 0.7, got %v", result.Businesses[1].Confidence)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 top level citations, got %d", len(result.Citations))
	}
}

func TestHTTPSearcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	searcher, err := NewHTTPSearcher(server.Client(), server.URL, "", 100, nil)
	if err != nil {
		t.Fatalf("new searcher: %v", err)
	}
	if _, err := searcher.Search(context.Background(), SearchRequest{Query: "anything", Limit: 3}); err == nil {
		t.Fatalf("expected error on upstream 502")
	}

	if _, err := NewHTTPSearcher(nil, "", "", 0, nil); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
