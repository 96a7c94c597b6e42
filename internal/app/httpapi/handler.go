package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	app "github.com/localloop/marketplace/internal/app"
	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/services/businesses"
	"github.com/localloop/marketplace/internal/app/services/capabilities"
	"github.com/localloop/marketplace/internal/app/services/connections"
	"github.com/localloop/marketplace/internal/app/services/discovery"
	"github.com/localloop/marketplace/internal/app/services/matching"
	"github.com/localloop/marketplace/internal/app/services/needs"
	"github.com/localloop/marketplace/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a mux exposing the marketplace REST API. Every request
// carries the acting identity in the X-User-ID and X-Business-ID headers; an
// upstream gateway is expected to authenticate and set them.
func NewHandler(application *app.Application) http.Handler {
	var sink auditSink
	if path := strings.TrimSpace(os.Getenv("AUDIT_LOG_PATH")); path != "" {
		if fileSink, err := newFileAuditSink(path); err == nil && fileSink != nil {
			sink = fileSink
		}
	}

	h := &handler{app: application, audit: newAuditLog(0, sink)}
	mux := http.NewServeMux()
	mux.HandleFunc("/businesses", h.businesses)
	mux.HandleFunc("/businesses/", h.businessResources)
	mux.HandleFunc("/capabilities/", h.capabilityResource)
	mux.HandleFunc("/needs/", h.needResource)
	mux.HandleFunc("/connections", h.connections)
	mux.HandleFunc("/connections/", h.connectionResource)
	mux.HandleFunc("/capabilities/search", h.searchCapabilities)
	mux.HandleFunc("/discovery/search", h.discoverySearch)
	mux.HandleFunc("/discovery/leads", h.discoveryLeads)
	mux.HandleFunc("/discovery/leads/", h.discoveryLeadResource)
	mux.HandleFunc("/impact", h.impact)
	mux.HandleFunc("/audit", h.auditEntries)
	return h.withIdentity(mux)
}

func (h *handler) businesses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
			Location    string `json:"location"`
			WebsiteURL  string `json:"website_url"`
			Local       bool   `json:"local"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		created, err := h.app.Businesses.Register(r.Context(), identityFrom(r.Context()).UserID, business.Business{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Location:    payload.Location,
			WebsiteURL:  payload.WebsiteURL,
			Local:       payload.Local,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		all, err := h.app.Businesses.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, all)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) businessResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/businesses"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	businessID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			b, err := h.app.Businesses.Get(r.Context(), businessID)
			if err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeJSON(w, http.StatusOK, b)
		case http.MethodPut:
			var payload business.Business
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			updated, err := h.app.Businesses.Update(r.Context(), identityFrom(r.Context()).UserID, businessID, payload)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "capabilities":
		h.businessCapabilities(w, r, businessID)
	case "needs":
		h.businessNeeds(w, r, businessID)
	case "connections":
		h.businessConnections(w, r, businessID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) businessCapabilities(w http.ResponseWriter, r *http.Request, businessID string) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			CapabilityType string   `json:"capability_type"`
			Category       string   `json:"category"`
			Subcategory    string   `json:"subcategory"`
			Title          string   `json:"title"`
			Description    string   `json:"description"`
			MinOrderValue  float64  `json:"min_order_value"`
			LeadTimeDays   int      `json:"lead_time_days"`
			ServiceArea    []string `json:"service_area"`
			Certifications []string `json:"certifications"`
			PricingModel   string   `json:"pricing_model"`
			PriceMin       *float64 `json:"price_min"`
			PriceMax       *float64 `json:"price_max"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		created, err := h.app.Capabilities.Create(r.Context(), identityFrom(r.Context()).UserID, capability.Capability{
			BusinessID:     businessID,
			CapabilityType: payload.CapabilityType,
			Category:       payload.Category,
			Subcategory:    payload.Subcategory,
			Title:          payload.Title,
			Description:    payload.Description,
			MinOrderValue:  payload.MinOrderValue,
			LeadTimeDays:   payload.LeadTimeDays,
			ServiceArea:    payload.ServiceArea,
			Certifications: payload.Certifications,
			PricingModel:   payload.PricingModel,
			PriceMin:       payload.PriceMin,
			PriceMax:       payload.PriceMax,
		})
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Capabilities.List(r.Context(), storage.CapabilityFilter{
			BusinessID: businessID,
			Category:   r.URL.Query().Get("category"),
			ActiveOnly: r.URL.Query().Get("active") == "true",
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) businessNeeds(w http.ResponseWriter, r *http.Request, businessID string) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			NeedType           string   `json:"need_type"`
			Category           string   `json:"category"`
			Subcategory        string   `json:"subcategory"`
			Title              string   `json:"title"`
			Description        string   `json:"description"`
			BudgetMin          *float64 `json:"budget_min"`
			BudgetMax          *float64 `json:"budget_max"`
			Urgency            string   `json:"urgency"`
			Quantity           string   `json:"quantity"`
			PreferredLocations []string `json:"preferred_locations"`
			ExpiresAt          string   `json:"expires_at"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		n := need.Need{
			BusinessID:         businessID,
			NeedType:           payload.NeedType,
			Category:           payload.Category,
			Subcategory:        payload.Subcategory,
			Title:              payload.Title,
			Description:        payload.Description,
			BudgetMin:          payload.BudgetMin,
			BudgetMax:          payload.BudgetMax,
			Urgency:            payload.Urgency,
			Quantity:           payload.Quantity,
			PreferredLocations: payload.PreferredLocations,
		}
		expires, err := parseTimePtr(payload.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		n.ExpiresAt = expires

		created, err := h.app.Needs.Create(r.Context(), identityFrom(r.Context()).UserID, n)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Needs.List(r.Context(), storage.NeedFilter{
			BusinessID: businessID,
			Category:   r.URL.Query().Get("category"),
			Status:     r.URL.Query().Get("status"),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) businessConnections(w http.ResponseWriter, r *http.Request, businessID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.app.Connections.ListForBusiness(r.Context(), businessID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) capabilityResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/capabilities"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := h.app.Capabilities.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case http.MethodPatch:
		var payload struct {
			Active *bool `json:"active"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Active == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("active is required"))
			return
		}
		updated, err := h.app.Capabilities.SetActive(r.Context(), identityFrom(r.Context()).UserID, id, *payload.Active)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) needResource(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/needs"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	needID := parts[0]

	if len(parts) == 2 && parts[1] == "matches" {
		h.needMatches(w, r, needID)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		n, err := h.app.Needs.Get(r.Context(), needID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case http.MethodPatch:
		var payload struct {
			Status *string `json:"status"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Status == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("status is required"))
			return
		}
		updated, err := h.app.Needs.Close(r.Context(), identityFrom(r.Context()).UserID, needID, *payload.Status)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) needMatches(w http.ResponseWriter, r *http.Request, needID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	n, err := h.app.Needs.Get(r.Context(), needID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
	}

	ranked, err := h.app.Matching.FindSuppliersForNeed(r.Context(), n, matching.Filters{Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (h *handler) searchCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	results, err := h.app.Matching.SearchCapabilities(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *handler) connections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		BuyerBusinessID    string   `json:"buyer_business_id"`
		SupplierBusinessID string   `json:"supplier_business_id"`
		NeedID             string   `json:"need_id"`
		CapabilityID       string   `json:"capability_id"`
		ConnectionType     string   `json:"connection_type"`
		Notes              string   `json:"notes"`
		MatchScore         *float64 `json:"match_score"`
		EstimatedValue     *float64 `json:"estimated_value"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Connections.Initiate(r.Context(), payload.BuyerBusinessID, payload.SupplierBusinessID, identityFrom(r.Context()).UserID, connections.InitiateOptions{
		NeedID:         payload.NeedID,
		CapabilityID:   payload.CapabilityID,
		ConnectionType: payload.ConnectionType,
		Notes:          payload.Notes,
		MatchScore:     payload.MatchScore,
		EstimatedValue: payload.EstimatedValue,
	})
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) connectionResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/connections"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		conn, err := h.app.Connections.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, conn)
	case http.MethodPatch:
		var payload struct {
			Status      *string  `json:"status"`
			ActualValue *float64 `json:"actual_value"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.Status == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("status is required"))
			return
		}

		updated, err := h.app.Connections.Transition(r.Context(), id, *payload.Status, payload.ActualValue)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) discoverySearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Query    string `json:"query"`
		Category string `json:"category"`
		Location string `json:"location"`
		Limit    int    `json:"limit"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.app.Discovery.SearchWebSuppliers(r.Context(), actorFrom(r.Context()), payload.Query, payload.Category, payload.Location, payload.Limit)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) discoveryLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		businessID := r.URL.Query().Get("business_id")
		if businessID == "" {
			businessID = identityFrom(r.Context()).BusinessID
		}
		leads, err := h.app.Discovery.ListLeads(r.Context(), businessID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, leads)

	case http.MethodPost:
		var payload struct {
			Business    lead.DiscoveredBusiness `json:"business"`
			SourceQuery string                  `json:"source_query"`
			Visible     bool                    `json:"visible"`
			SaveAll     bool                    `json:"save_all"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if payload.SaveAll {
			summary, err := h.app.Discovery.SaveAllSearchResults(r.Context(), actorFrom(r.Context()), payload.SourceQuery, payload.Visible)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
			return
		}

		saved, created, err := h.app.Discovery.SaveExternalLead(r.Context(), actorFrom(r.Context()), payload.Business, payload.SourceQuery, payload.Visible)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, saved)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) discoveryLeadResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/discovery/leads"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		l, err := h.app.Discovery.GetLead(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	case http.MethodPatch:
		var payload struct {
			ClaimStatus *string `json:"claim_status"`
			Visible     *bool   `json:"visible"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.ClaimStatus == nil && payload.Visible == nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("claim_status or visible is required"))
			return
		}

		var (
			updated lead.ExternalLead
			err     error
		)
		if payload.ClaimStatus != nil {
			updated, err = h.app.Discovery.AdvanceClaim(r.Context(), id, *payload.ClaimStatus)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
		}
		if payload.Visible != nil {
			updated, err = h.app.Discovery.SetLeadVisibility(r.Context(), id, *payload.Visible)
			if err != nil {
				writeError(w, statusForError(err), err)
				return
			}
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) impact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	m, err := h.app.Impact.ComputeImpactMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be an integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// statusForError maps service errors onto HTTP status codes. Validation
// failures are 400, ownership 403, missing records 404, write conflicts 409.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, businesses.ErrNotOwner), errors.Is(err, capabilities.ErrNotOwner), errors.Is(err, needs.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, connections.ErrInvalidTransition), errors.Is(err, connections.ErrTerminalStatus):
		return http.StatusConflict
	case errors.Is(err, discovery.ErrSearchUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func parseTimePtr(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("expires_at must be RFC3339 timestamp")
	}
	return &parsed, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
