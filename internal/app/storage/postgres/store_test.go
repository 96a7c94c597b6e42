package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/localloop/marketplace/internal/app/domain/business"
	"github.com/localloop/marketplace/internal/app/domain/capability"
	"github.com/localloop/marketplace/internal/app/domain/connection"
	"github.com/localloop/marketplace/internal/app/domain/lead"
	"github.com/localloop/marketplace/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateLead_DuplicateMapsToSentinel(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO external_leads`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "external_leads_identity_idx"})

	_, err := store.CreateLead(context.Background(), lead.ExternalLead{
		BusinessName:           "Riverside Catering Co.",
		DiscoveredByBusinessID: "biz-1",
	})
	if !errors.Is(err, storage.ErrDuplicateLead) {
		t.Fatalf("expected ErrDuplicateLead, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateConnection_VersionMismatchMapsToConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE connections`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{
		"id", "buyer_business_id", "supplier_business_id", "need_id", "capability_id",
		"connection_type", "match_score", "notes", "estimated_value", "actual_value",
		"status", "initiator_user_id", "version", "created_at", "updated_at",
	}).AddRow("c1", "b1", "b2", "", "", "b2b", nil, "", nil, nil, connection.StatusActive, "u1", 3, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM connections`).WillReturnRows(rows)

	_, err := store.UpdateConnection(context.Background(), connection.Connection{
		ID:      "c1",
		Status:  connection.StatusCompleted,
		Version: 2,
	})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetImpactMetrics_SingleSnapshot(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM connections`).WillReturnRows(
		sqlmock.NewRows([]string{"count", "active", "completed", "total", "avg", "avg_score"}).
			AddRow(10, 3, 4, 18000.0, 4500.0, 72.5))
	mock.ExpectQuery(`FROM capabilities`).WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(`FROM needs`).WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SUM\(c\.actual_value\)`).WillReturnRows(
		sqlmock.NewRows([]string{"sum"}).AddRow(12000.0))
	mock.ExpectCommit()

	m, err := store.GetImpactMetrics(context.Background())
	if err != nil {
		t.Fatalf("get impact metrics: %v", err)
	}
	if m.TotalConnections != 10 || m.ActiveConnections != 3 || m.CompletedConnections != 4 {
		t.Fatalf("unexpected counts: %#v", m)
	}
	if m.ActiveConnections+m.CompletedConnections > m.TotalConnections {
		t.Fatalf("snapshot invariant violated: %#v", m)
	}
	if m.MoneyKeptInCommunity != 12000.0 {
		t.Fatalf("unexpected community value: %v", m.MoneyKeptInCommunity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetImpactMetrics_FailsWhenSnapshotUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("snapshot unavailable"))

	if _, err := store.GetImpactMetrics(context.Background()); err == nil {
		t.Fatalf("expected error when snapshot cannot begin")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)

	ctx := context.Background()
	buyer, err := store.CreateBusiness(ctx, business.Business{Name: "Buyer Co", Verified: true, Local: true})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	supplier, err := store.CreateBusiness(ctx, business.Business{Name: "Supplier Co", Verified: true, Local: true})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	offer, err := store.CreateCapability(ctx, capability.Capability{
		BusinessID: supplier.ID,
		Category:   "Catering & Food Service",
		Title:      "Corporate catering",
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create capability: %v", err)
	}

	conn := connection.Connection{
		BuyerBusinessID:    buyer.ID,
		SupplierBusinessID: supplier.ID,
		CapabilityID:       offer.ID,
		Status:             connection.StatusInquiry,
	}
	if _, err := store.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("create connection: %v", err)
	}

	if _, err := store.GetImpactMetrics(ctx); err != nil {
		t.Fatalf("impact metrics: %v", err)
	}
}
