package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/internal/app/domain/impact"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/domain/need"
	"github.com/localloop/marketplace/internal/app/storage"
)

const pgUniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.BusinessStore = (*Store)(nil)
var _ storage.CapabilityStore = (*Store)(nil)
var _ storage.NeedStore = (*Store)(nil)
var _ storage.ConnectionStore = (*Store)(nil)
var _ storage.LeadStore = (*Store)(nil)
var _ storage.ImpactStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- BusinessStore ----------------------------------------------------------

func (s *Store) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, owner_user_id, name, description, category, location, website_url, verified, local, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.OwnerUserID, b.Name, b.Description, b.Category, b.Location, b.WebsiteURL, b.Verified, b.Local, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	existing, err := s.GetBusiness(ctx, b.ID)
	if err != nil {
		return business.Business{}, err
	}

	b.OwnerUserID = existing.OwnerUserID
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE businesses
		SET name = $2, description = $3, category = $4, location = $5, website_url = $6, verified = $7, local = $8, updated_at = $9
		WHERE id = $1
	`, b.ID, b.Name, b.Description, b.Category, b.Location, b.WebsiteURL, b.Verified, b.Local, b.UpdatedAt)
	if err != nil {
		return business.Business{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return business.Business{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_user_id, name, description, category, location, website_url, verified, local, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id)

	var b business.Business
	if err := row.Scan(&b.ID, &b.OwnerUserID, &b.Name, &b.Description, &b.Category, &b.Location, &b.WebsiteURL, &b.Verified, &b.Local, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return business.Business{}, fmt.Errorf("business %s: %w", id, storage.ErrNotFound)
		}
		return business.Business{}, err
	}
	return b, nil
}

func (s *Store) ListBusinesses(ctx context.Context) ([]business.Business, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_user_id, name, description, category, location, website_url, verified, local, created_at, updated_at
		FROM businesses
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []business.Business
	for rows.Next() {
		var b business.Business
		if err := rows.Scan(&b.ID, &b.OwnerUserID, &b.Name, &b.Description, &b.Category, &b.Location, &b.WebsiteURL, &b.Verified, &b.Local, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// --- CapabilityStore --------------------------------------------------------

func (s *Store) CreateCapability(ctx context.Context, c capability.Capability) (capability.Capability, error) {
	if c.BusinessID == "" {
		return capability.Capability{}, errors.New("business_id required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capabilities (id, business_id, capability_type, category, subcategory, title, description, min_order_value, lead_time_days, service_area, certifications, pricing_model, price_min, price_max, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, c.ID, c.BusinessID, c.CapabilityType, c.Category, c.Subcategory, c.Title, c.Description, c.MinOrderValue, c.LeadTimeDays,
		pq.Array(c.ServiceArea), pq.Array(c.Certifications), c.PricingModel, toNullFloat(c.PriceMin), toNullFloat(c.PriceMax), c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return capability.Capability{}, err
	}
	return c, nil
}

func (s *Store) UpdateCapability(ctx context.Context, c capability.Capability) (capability.Capability, error) {
	existing, err := s.GetCapability(ctx, c.ID)
	if err != nil {
		return capability.Capability{}, err
	}

	c.BusinessID = existing.BusinessID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE capabilities
		SET capability_type = $2, category = $3, subcategory = $4, title = $5, description = $6, min_order_value = $7, lead_time_days = $8, service_area = $9, certifications = $10, pricing_model = $11, price_min = $12, price_max = $13, is_active = $14, updated_at = $15
		WHERE id = $1
	`, c.ID, c.CapabilityType, c.Category, c.Subcategory, c.Title, c.Description, c.MinOrderValue, c.LeadTimeDays,
		pq.Array(c.ServiceArea), pq.Array(c.Certifications), c.PricingModel, toNullFloat(c.PriceMin), toNullFloat(c.PriceMax), c.Active, c.UpdatedAt)
	if err != nil {
		return capability.Capability{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return capability.Capability{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCapability(ctx context.Context, id string) (capability.Capability, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, capability_type, category, subcategory, title, description, min_order_value, lead_time_days, service_area, certifications, pricing_model, price_min, price_max, is_active, created_at, updated_at
		FROM capabilities
		WHERE id = $1
	`, id)

	c, err := scanCapability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return capability.Capability{}, fmt.Errorf("capability %s: %w", id, storage.ErrNotFound)
		}
		return capability.Capability{}, err
	}
	return c, nil
}

func (s *Store) ListCapabilities(ctx context.Context, filter storage.CapabilityFilter) ([]capability.Capability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, capability_type, category, subcategory, title, description, min_order_value, lead_time_days, service_area, certifications, pricing_model, price_min, price_max, is_active, created_at, updated_at
		FROM capabilities
		WHERE ($1 = '' OR business_id = $1)
		  AND ($2 = '' OR lower(category) = lower($2))
		  AND ($3 = false OR is_active)
		ORDER BY created_at
	`, filter.BusinessID, filter.Category, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []capability.Capability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapability(row rowScanner) (capability.Capability, error) {
	var (
		c                  capability.Capability
		priceMin, priceMax sql.NullFloat64
		area, certs        pq.StringArray
	)
	if err := row.Scan(&c.ID, &c.BusinessID, &c.CapabilityType, &c.Category, &c.Subcategory, &c.Title, &c.Description, &c.MinOrderValue, &c.LeadTimeDays,
		&area, &certs, &c.PricingModel, &priceMin, &priceMax, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return capability.Capability{}, err
	}
	c.ServiceArea = []string(area)
	c.Certifications = []string(certs)
	c.PriceMin = fromNullFloat(priceMin)
	c.PriceMax = fromNullFloat(priceMax)
	return c, nil
}

// --- NeedStore --------------------------------------------------------------

func (s *Store) CreateNeed(ctx context.Context, n need.Need) (need.Need, error) {
	if n.BusinessID == "" {
		return need.Need{}, errors.New("business_id required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = need.StatusOpen
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO needs (id, business_id, need_type, category, subcategory, title, description, budget_min, budget_max, urgency, quantity, preferred_locations, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, n.ID, n.BusinessID, n.NeedType, n.Category, n.Subcategory, n.Title, n.Description, toNullFloat(n.BudgetMin), toNullFloat(n.BudgetMax),
		n.Urgency, n.Quantity, pq.Array(n.PreferredLocations), n.Status, toNullTimePtr(n.ExpiresAt), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return need.Need{}, err
	}
	return n, nil
}

func (s *Store) UpdateNeed(ctx context.Context, n need.Need) (need.Need, error) {
	existing, err := s.GetNeed(ctx, n.ID)
	if err != nil {
		return need.Need{}, err
	}

	n.BusinessID = existing.BusinessID
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE needs
		SET need_type = $2, category = $3, subcategory = $4, title = $5, description = $6, budget_min = $7, budget_max = $8, urgency = $9, quantity = $10, preferred_locations = $11, status = $12, expires_at = $13, updated_at = $14
		WHERE id = $1
	`, n.ID, n.NeedType, n.Category, n.Subcategory, n.Title, n.Description, toNullFloat(n.BudgetMin), toNullFloat(n.BudgetMax),
		n.Urgency, n.Quantity, pq.Array(n.PreferredLocations), n.Status, toNullTimePtr(n.ExpiresAt), n.UpdatedAt)
	if err != nil {
		return need.Need{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return need.Need{}, storage.ErrNotFound
	}
	return n, nil
}

func (s *Store) GetNeed(ctx context.Context, id string) (need.Need, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, need_type, category, subcategory, title, description, budget_min, budget_max, urgency, quantity, preferred_locations, status, expires_at, created_at, updated_at
		FROM needs
		WHERE id = $1
	`, id)

	n, err := scanNeed(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return need.Need{}, fmt.Errorf("need %s: %w", id, storage.ErrNotFound)
		}
		return need.Need{}, err
	}
	return n, nil
}

func (s *Store) ListNeeds(ctx context.Context, filter storage.NeedFilter) ([]need.Need, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, need_type, category, subcategory, title, description, budget_min, budget_max, urgency, quantity, preferred_locations, status, expires_at, created_at, updated_at
		FROM needs
		WHERE ($1 = '' OR business_id = $1)
		  AND ($2 = '' OR lower(category) = lower($2))
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at
	`, filter.BusinessID, filter.Category, filter.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []need.Need
	for rows.Next() {
		n, err := scanNeed(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func scanNeed(row rowScanner) (need.Need, error) {
	var (
		n                    need.Need
		budgetMin, budgetMax sql.NullFloat64
		locations            pq.StringArray
		expiresAt            sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.BusinessID, &n.NeedType, &n.Category, &n.Subcategory, &n.Title, &n.Description, &budgetMin, &budgetMax,
		&n.Urgency, &n.Quantity, &locations, &n.Status, &expiresAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return need.Need{}, err
	}
	n.BudgetMin = fromNullFloat(budgetMin)
	n.BudgetMax = fromNullFloat(budgetMax)
	n.PreferredLocations = []string(locations)
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		n.ExpiresAt = &t
	}
	return n, nil
}

// --- ConnectionStore --------------------------------------------------------

func (s *Store) CreateConnection(ctx context.Context, c connection.Connection) (connection.Connection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (id, buyer_business_id, supplier_business_id, need_id, capability_id, connection_type, match_score, notes, estimated_value, actual_value, status, initiator_user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, c.ID, c.BuyerBusinessID, c.SupplierBusinessID, c.NeedID, c.CapabilityID, c.ConnectionType, toNullFloat(c.MatchScore),
		c.Notes, toNullFloat(c.EstimatedValue), toNullFloat(c.ActualValue), c.Status, c.InitiatorUserID, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return connection.Connection{}, err
	}
	return c, nil
}

// UpdateConnection writes the record only when the stored version matches the
// caller's copy. A losing concurrent writer gets storage.ErrConflict.
func (s *Store) UpdateConnection(ctx context.Context, c connection.Connection) (connection.Connection, error) {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE connections
		SET connection_type = $2, match_score = $3, notes = $4, estimated_value = $5, actual_value = $6, status = $7, version = version + 1, updated_at = $8
		WHERE id = $1 AND version = $9
	`, c.ID, c.ConnectionType, toNullFloat(c.MatchScore), c.Notes, toNullFloat(c.EstimatedValue), toNullFloat(c.ActualValue), c.Status, c.UpdatedAt, c.Version)
	if err != nil {
		return connection.Connection{}, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := s.GetConnection(ctx, c.ID); err != nil {
			return connection.Connection{}, err
		}
		return connection.Connection{}, fmt.Errorf("connection %s: %w", c.ID, storage.ErrConflict)
	}
	c.Version++
	return c, nil
}

func (s *Store) GetConnection(ctx context.Context, id string) (connection.Connection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_business_id, supplier_business_id, COALESCE(need_id, ''), COALESCE(capability_id, ''), connection_type, match_score, notes, estimated_value, actual_value, status, initiator_user_id, version, created_at, updated_at
		FROM connections
		WHERE id = $1
	`, id)

	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return connection.Connection{}, fmt.Errorf("connection %s: %w", id, storage.ErrNotFound)
		}
		return connection.Connection{}, err
	}
	return c, nil
}

func (s *Store) ListConnectionsForBusiness(ctx context.Context, businessID string) ([]connection.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buyer_business_id, supplier_business_id, COALESCE(need_id, ''), COALESCE(capability_id, ''), connection_type, match_score, notes, estimated_value, actual_value, status, initiator_user_id, version, created_at, updated_at
		FROM connections
		WHERE buyer_business_id = $1 OR supplier_business_id = $1
		ORDER BY created_at DESC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []connection.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanConnection(row rowScanner) (connection.Connection, error) {
	var (
		c                                connection.Connection
		matchScore, estimated, actualVal sql.NullFloat64
	)
	if err := row.Scan(&c.ID, &c.BuyerBusinessID, &c.SupplierBusinessID, &c.NeedID, &c.CapabilityID, &c.ConnectionType,
		&matchScore, &c.Notes, &estimated, &actualVal, &c.Status, &c.InitiatorUserID, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return connection.Connection{}, err
	}
	c.MatchScore = fromNullFloat(matchScore)
	c.EstimatedValue = fromNullFloat(estimated)
	c.ActualValue = fromNullFloat(actualVal)
	return c, nil
}

// --- LeadStore --------------------------------------------------------------

func (s *Store) CreateLead(ctx context.Context, l lead.ExternalLead) (lead.ExternalLead, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ClaimStatus == "" {
		l.ClaimStatus = lead.ClaimUnclaimed
	}
	l.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_leads (id, discovered_by_user_id, discovered_by_business_id, source_query, business_name, normalized_name, description, category, contact_email, contact_phone, contact_address, website_url, location, source_citations, confidence_score, is_visible_in_directory, claim_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, l.ID, l.DiscoveredByUserID, l.DiscoveredByBusinessID, l.SourceQuery, l.BusinessName, lead.NormalizeName(l.BusinessName),
		l.Description, l.Category, l.Contact.Email, l.Contact.Phone, l.Contact.Address, l.WebsiteURL, l.Location,
		pq.Array(l.SourceCitations), l.ConfidenceScore, l.VisibleInDirectory, l.ClaimStatus, l.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return lead.ExternalLead{}, fmt.Errorf("lead %q: %w", l.BusinessName, storage.ErrDuplicateLead)
		}
		return lead.ExternalLead{}, err
	}
	return l, nil
}

func (s *Store) GetLead(ctx context.Context, id string) (lead.ExternalLead, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, discovered_by_user_id, discovered_by_business_id, source_query, business_name, description, category, contact_email, contact_phone, contact_address, website_url, location, source_citations, confidence_score, is_visible_in_directory, claim_status, created_at
		FROM external_leads
		WHERE id = $1
	`, id)

	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lead.ExternalLead{}, fmt.Errorf("lead %s: %w", id, storage.ErrNotFound)
		}
		return lead.ExternalLead{}, err
	}
	return l, nil
}

func (s *Store) ListLeads(ctx context.Context, discoveredByBusinessID string) ([]lead.ExternalLead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, discovered_by_user_id, discovered_by_business_id, source_query, business_name, description, category, contact_email, contact_phone, contact_address, website_url, location, source_citations, confidence_score, is_visible_in_directory, claim_status, created_at
		FROM external_leads
		WHERE $1 = '' OR discovered_by_business_id = $1
		ORDER BY created_at
	`, discoveredByBusinessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lead.ExternalLead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (s *Store) UpdateLeadStatus(ctx context.Context, id, claimStatus string, visible bool) (lead.ExternalLead, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE external_leads
		SET claim_status = $2, is_visible_in_directory = $3
		WHERE id = $1
	`, id, claimStatus, visible)
	if err != nil {
		return lead.ExternalLead{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return lead.ExternalLead{}, fmt.Errorf("lead %s: %w", id, storage.ErrNotFound)
	}
	return s.GetLead(ctx, id)
}

func scanLead(row rowScanner) (lead.ExternalLead, error) {
	var (
		l         lead.ExternalLead
		citations pq.StringArray
	)
	if err := row.Scan(&l.ID, &l.DiscoveredByUserID, &l.DiscoveredByBusinessID, &l.SourceQuery, &l.BusinessName, &l.Description, &l.Category,
		&l.Contact.Email, &l.Contact.Phone, &l.Contact.Address, &l.WebsiteURL, &l.Location, &citations, &l.ConfidenceScore,
		&l.VisibleInDirectory, &l.ClaimStatus, &l.CreatedAt); err != nil {
		return lead.ExternalLead{}, err
	}
	l.SourceCitations = []string(citations)
	return l, nil
}

// --- ImpactStore ------------------------------------------------------------

// GetImpactMetrics runs the whole aggregation inside one repeatable-read
// transaction so every count reflects the same snapshot. If the transaction
// cannot commit the error surfaces; partially consistent metrics are never
// returned.
func (s *Store) GetImpactMetrics(ctx context.Context) (impact.Metrics, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return impact.Metrics{}, fmt.Errorf("begin metrics snapshot: %w", err)
	}
	defer tx.Rollback()

	m := impact.Metrics{ComputedAt: time.Now().UTC()}

	row := tx.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COALESCE(SUM(actual_value) FILTER (WHERE status = 'completed'), 0),
			COALESCE(AVG(actual_value) FILTER (WHERE status = 'completed' AND actual_value IS NOT NULL), 0),
			COALESCE(AVG(match_score) FILTER (WHERE match_score IS NOT NULL), 0)
		FROM connections
	`)
	if err := row.Scan(&m.TotalConnections, &m.ActiveConnections, &m.CompletedConnections,
		&m.TotalTransactionValue, &m.AvgTransactionValue, &m.AvgMatchScore); err != nil {
		return impact.Metrics{}, fmt.Errorf("aggregate connections: %w", err)
	}

	if err := tx.GetContext(ctx, &m.ActiveSuppliers, `
		SELECT COUNT(DISTINCT business_id) FROM capabilities WHERE is_active
	`); err != nil {
		return impact.Metrics{}, fmt.Errorf("count active suppliers: %w", err)
	}

	if err := tx.GetContext(ctx, &m.OpenNeeds, `
		SELECT COUNT(*) FROM needs WHERE status = 'open'
	`); err != nil {
		return impact.Metrics{}, fmt.Errorf("count open needs: %w", err)
	}

	if err := tx.GetContext(ctx, &m.MoneyKeptInCommunity, `
		SELECT COALESCE(SUM(c.actual_value), 0)
		FROM connections c
		JOIN businesses buyer ON buyer.id = c.buyer_business_id
		JOIN businesses supplier ON supplier.id = c.supplier_business_id
		WHERE c.status = 'completed'
		  AND c.actual_value IS NOT NULL
		  AND buyer.local AND buyer.verified
		  AND supplier.local AND supplier.verified
	`); err != nil {
		return impact.Metrics{}, fmt.Errorf("sum community value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return impact.Metrics{}, fmt.Errorf("commit metrics snapshot: %w", err)
	}
	return m, nil
}

// helpers ---------------------------------------------------------------------

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toNullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
