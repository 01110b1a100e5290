package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"invoice-dashboard-backend/apperrors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder captures every statement gorm renders, with bound values inlined.
type sqlRecorder struct {
	statements []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.statements = append(r.statements, sql)
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	if len(r.statements) == 0 {
		t.Fatal("no statement was rendered")
	}
	return r.statements[len(r.statements)-1]
}

// dryRunStore builds a store whose statements are rendered but never sent to a server.
func dryRunStore(t *testing.T) (*RelationalStore, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true, Logger: rec})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	store := NewRelationalStore(db, time.Second, 25)
	store.now = func() time.Time { return time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC) }
	return store, rec
}

func assertContains(t *testing.T, sql string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(sql, f) {
			t.Errorf("SQL missing %q:\n%s", f, sql)
		}
	}
}

func TestRelationalQueriesCarryTenantPredicate(t *testing.T) {
	ctx := context.Background()
	store, rec := dryRunStore(t)

	tests := []struct {
		name      string
		run       func() error
		fragments []string
	}{
		{"pending", func() error { _, err := store.ListPending(ctx, "acme"); return err },
			[]string{`FROM "invoices"`, "tenant_id = 'acme'", "aprobado IS NULL"}},
		{"approved", func() error { _, err := store.ListApproved(ctx, "acme"); return err },
			[]string{"tenant_id = 'acme'", "aprobado = true", "LIMIT 25"}},
		{"list", func() error { _, err := store.List(ctx, "acme", ListOptions{Limit: 10}); return err },
			[]string{"tenant_id = 'acme'", "LIMIT 11"}},
		{"detail by business id", func() error { _, err := store.GetByID(ctx, "acme", "F001-00000123"); return err },
			[]string{"tenant_id = 'acme'", "numero_factura = 'F001-00000123'"}},
		{"detail by internal id", func() error {
			_, err := store.GetByID(ctx, "acme", "5f1b7c5e-8a2d-4f57-9a51-0d3b2a1c9e10")
			return err
		}, []string{"tenant_id = 'acme'", "id = '5f1b7c5e-8a2d-4f57-9a51-0d3b2a1c9e10'"}},
		{"line items", func() error {
			_, err := store.LineItems(ctx, "acme", "5f1b7c5e-8a2d-4f57-9a51-0d3b2a1c9e10")
			return err
		}, []string{`FROM "invoice_items"`, "tenant_id = 'acme'", "ORDER BY numero_linea ASC"}},
		{"stats", func() error { _, err := store.Stats(ctx, "acme"); return err },
			[]string{"tenant_id = 'acme'", "FILTER (WHERE aprobado IS NULL)", "GROUP BY"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != nil {
				t.Fatalf("error = %v", err)
			}
			assertContains(t, rec.last(t), tt.fragments...)
		})
	}
}

func TestRelationalEmptyTenantMatchesNothing(t *testing.T) {
	store, rec := dryRunStore(t)
	if _, err := store.ListPending(context.Background(), "  "); err != nil {
		t.Fatal(err)
	}
	sql := rec.last(t)
	assertContains(t, sql, "1 = 0")
	if strings.Contains(sql, "tenant_id = ''") {
		t.Errorf("blank tenant leaked into predicate:\n%s", sql)
	}
}

func TestRelationalListSearchAndCursor(t *testing.T) {
	store, rec := dryRunStore(t)
	cursor := `eyJvZmZzZXQiOjIwfQ==` // {"offset":20}
	if _, err := store.List(context.Background(), "acme", ListOptions{Limit: 10, Search: "50%_off", Cursor: cursor}); err != nil {
		t.Fatal(err)
	}
	assertContains(t, rec.last(t), `numero_factura LIKE '%50\%\_off%'`, "OFFSET 20")
}

func TestRelationalApprovalIsSingleScopedUpdate(t *testing.T) {
	store, rec := dryRunStore(t)
	if _, err := store.Approve(context.Background(), "acme", []string{"F001-1", "F001-2"}, "ana@acme.pe", "ok"); err != nil {
		t.Fatal(err)
	}
	if len(rec.statements) != 1 {
		t.Fatalf("rendered %d statements, want 1", len(rec.statements))
	}
	assertContains(t, rec.last(t),
		`UPDATE "invoices"`,
		"tenant_id = 'acme'",
		"numero_factura IN ('F001-1','F001-2')",
		"aprobado IS NOT DISTINCT FROM true",
		"'ana@acme.pe'",
		`RETURNING "numero_factura"`,
	)
}

func TestRelationalApprovalRejectsEmptyBatch(t *testing.T) {
	store, rec := dryRunStore(t)
	if _, err := store.Reject(context.Background(), "acme", nil, "ana", ""); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Errorf("Reject(nil) error = %v, want invalid argument", err)
	}
	if len(rec.statements) != 0 {
		t.Errorf("statements were rendered for an empty batch: %v", rec.statements)
	}
}

func TestRelationalWithoutDatabase(t *testing.T) {
	store := NewRelationalStore(nil, time.Second, 0)
	if _, err := store.ListPending(context.Background(), "acme"); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("ListPending() error = %v, want configuration error", err)
	}
}

func TestReduceStats(t *testing.T) {
	rows := []statsRow{
		{StatsCurrency: "PEN", PendingCount: 2, PendingAmount: decimal.RequireFromString("150.50"), ApprovedToday: 1, Overdue: 1},
		{StatsCurrency: "usd", PendingCount: 1, PendingAmount: decimal.RequireFromString("99.99")},
		{StatsCurrency: "EUR", PendingCount: 0, ApprovedToday: 2},
	}
	got := reduceStats(rows)
	if got.PendingCount != 3 || got.ApprovedTodayCount != 3 || got.OverdueCount != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got.PendingAmountByCurrency["PEN"] != 150.5 || got.PendingAmountByCurrency["USD"] != 99.99 {
		t.Errorf("amounts = %v", got.PendingAmountByCurrency)
	}
	if _, ok := got.PendingAmountByCurrency["EUR"]; ok {
		t.Error("currency without pending invoices should be absent")
	}

	empty := reduceStats(nil)
	if empty.PendingCount != 0 || empty.PendingAmountByCurrency == nil || len(empty.PendingAmountByCurrency) != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
