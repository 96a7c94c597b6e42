package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/pkg/logger"
)

const maxSearchResponseBytes = 1 << 20

// HTTPSearcher calls an AI web-search endpoint over HTTP. Requests are rate
// limited and the response body is parsed tolerantly: missing fields produce
// zero values rather than errors.
type HTTPSearcher struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewHTTPSearcher constructs a searcher for the given endpoint. rps bounds
// outbound requests per second; values <= 0 default to one per second.
func NewHTTPSearcher(client *http.Client, endpoint, apiKey string, rps float64, log *logger.Logger) (*HTTPSearcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("searcher endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse searcher endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if rps <= 0 {
		rps = 1
	}
	if log == nil {
		log = logger.NewDefault("discovery-http-searcher")
	}
	return &HTTPSearcher{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		log:      log,
	}, nil
}

// Search posts the structured query and decodes the response into discovered
// businesses plus citations.
func (h *HTTPSearcher) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return SearchResult{}, fmt.Errorf("search rate limit: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SearchResult{}, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return SearchResult{}, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("search status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		return SearchResult{}, fmt.Errorf("read search response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return SearchResult{}, fmt.Errorf("search response is not valid JSON")
	}

	parsed := gjson.ParseBytes(raw)
	var result SearchResult
	for _, item := range parsed.Get("businesses").Array() {
		b := lead.DiscoveredBusiness{
			Name:        item.Get("name").String(),
			Description: item.Get("description").String(),
			Category:    item.Get("category").String(),
			WebsiteURL:  item.Get("website_url").String(),
			Location:    item.Get("location").String(),
			Contact: lead.ContactInfo{
				Email:   item.Get("contact.email").String(),
				Phone:   item.Get("contact.phone").String(),
				Address: item.Get("contact.address").String(),
			},
		}
		if conf := item.Get("confidence"); conf.Exists() {
			b.Confidence = conf.Float()
		} else {
			b.Confidence = defaultConfidence
		}
		for _, c := range item.Get("citations").Array() {
			b.Citations = append(b.Citations, c.String())
		}
		result.Businesses = append(result.Businesses, b)
	}
	for _, c := range parsed.Get("citations").Array() {
		result.Citations = append(result.Citations, c.String())
	}

	h.log.WithField("results", len(result.Businesses)).Debug("search response parsed")
	return result, nil
}
