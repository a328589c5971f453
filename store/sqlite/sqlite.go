/*
Package sqlite provides the SQLite-backed implementation of core.Store.

PURPOSE:
  Implements every persistence interface the billing engine depends on
  using SQLite. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  tariff_schedules / fixed_concepts / consumption_tiers / extra_charges:
      The tariff catalog, read as one snapshot per billing operation.
  service_state_config: Singleton operational parameters.
  customers / meters / readings: The service directory.
  invoices / invoice_tier_lines / invoice_extra_charges:
      Invoices with their frozen tier breakdowns and per-invoice charges.
  reconnection_plans / installments: Financed reconnection fees.
  payments:      Every settlement attempt, approved or not.
  state_history: Immutable record of service-state transitions.
  audit_log:     Best-effort operational audit entries.

AMOUNT ENCODING:
  Monetary amounts and volumes are stored as TEXT holding the decimal
  string representation. No floating point touches the database.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

TRANSACTIONS:
  WithTx runs the callback against a transactional view of the store.
  Nested WithTx calls join the open transaction. The connection pool is
  capped at one connection so SQLite never reports SQLITE_BUSY under
  concurrent writers.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/core"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries carries every entity method; it runs against either the bare
// database or an open transaction.
type queries struct {
	db dbtx
}

// Store implements core.Store using SQLite.
type Store struct {
	queries
	sqldb *sql.DB
}

// New creates a new SQLite store, migrating the schema on open.
// Use ":memory:" for an in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite serializes writers anyway and a pool of
	// one avoids SQLITE_BUSY between the scheduler and the API.
	db.SetMaxOpenConns(1)

	s := &Store{queries: queries{db: db}, sqldb: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqldb.Close()
}

// WithTx executes fn within a database transaction. The store handed to
// fn sees and writes only that transaction's state until commit.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	tx, err := s.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := &txStore{queries: queries{db: tx}}
	if err := fn(ts); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	queries
}

// WithTx on an open transaction joins it rather than nesting.
func (ts *txStore) WithTx(ctx context.Context, fn func(core.Store) error) error {
	return fn(ts)
}

// =============================================================================
// SCHEMA
// =============================================================================

func (s *Store) migrate() error {
	schema := `
	-- Tariff catalog
	CREATE TABLE IF NOT EXISTS tariff_schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_until TEXT,
		active BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_active ON tariff_schedules(active);

	CREATE TABLE IF NOT EXISTS fixed_concepts (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES tariff_schedules(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		class TEXT NOT NULL,
		amount TEXT NOT NULL,
		threshold TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_concepts_schedule ON fixed_concepts(schedule_id);

	CREATE TABLE IF NOT EXISTS consumption_tiers (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES tariff_schedules(id) ON DELETE CASCADE,
		class TEXT NOT NULL,
		from_vol TEXT NOT NULL,
		to_vol TEXT,
		price TEXT NOT NULL,
		position INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tiers_schedule ON consumption_tiers(schedule_id, class, position);

	CREATE TABLE IF NOT EXISTS extra_charges (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES tariff_schedules(id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		mode TEXT NOT NULL,
		months_overdue INTEGER NOT NULL DEFAULT 0,
		days_after_notice INTEGER NOT NULL DEFAULT 0,
		threshold_days INTEGER NOT NULL DEFAULT 0,
		free_of_charge BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_charges_schedule_code ON extra_charges(schedule_id, code);

	-- Singleton operational parameters (one active row)
	CREATE TABLE IF NOT EXISTS service_state_config (
		id TEXT PRIMARY KEY,
		months_before_debt_notice INTEGER NOT NULL,
		debt_notice_fee TEXT NOT NULL,
		days_before_cutoff_notice INTEGER NOT NULL,
		cutoff_notice_fee TEXT NOT NULL,
		days_before_cutoff INTEGER NOT NULL,
		reconnection_fee TEXT NOT NULL,
		max_installments INTEGER NOT NULL,
		mora_surcharge TEXT NOT NULL,
		mora_enabled BOOLEAN NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Service directory
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class TEXT NOT NULL,
		zone TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		service_state TEXT NOT NULL DEFAULT 'ACTIVE',
		has_active_debt_notice BOOLEAN NOT NULL DEFAULT FALSE,
		has_active_cutoff_notice BOOLEAN NOT NULL DEFAULT FALSE,
		service_cut BOOLEAN NOT NULL DEFAULT FALSE,
		debt_notice_at TEXT,
		cutoff_notice_at TEXT,
		cutoff_at TEXT,
		last_reconnection_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_customers_state ON customers(service_state);
	CREATE INDEX IF NOT EXISTS idx_customers_active ON customers(active);

	CREATE TABLE IF NOT EXISTS meters (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		serial TEXT NOT NULL DEFAULT '',
		initial_reading TEXT NOT NULL DEFAULT '0',
		installed_at TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE INDEX IF NOT EXISTS idx_meters_customer ON meters(customer_id, active);

	CREATE TABLE IF NOT EXISTS readings (
		id TEXT PRIMARY KEY,
		meter_id TEXT NOT NULL REFERENCES meters(id),
		value TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		taken_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_meter_period ON readings(meter_id, year, month, taken_at);

	-- Invoices with frozen breakdowns
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		schedule_id TEXT NOT NULL,
		reading_id TEXT,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		consumption TEXT NOT NULL,
		has_meter BOOLEAN NOT NULL,
		base_fee TEXT NOT NULL,
		consumption_amount TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		extra_charges_total TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		installment_number INTEGER,
		total TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		service_state_at_issue TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_customer_period ON invoices(customer_id, year, month);
	CREATE INDEX IF NOT EXISTS idx_invoices_customer_status ON invoices(customer_id, status);
	CREATE INDEX IF NOT EXISTS idx_invoices_due ON invoices(status, due_date);

	CREATE TABLE IF NOT EXISTS invoice_tier_lines (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		tier_from TEXT NOT NULL,
		tier_to TEXT,
		volume TEXT NOT NULL,
		price TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		PRIMARY KEY (invoice_id, position)
	);

	CREATE TABLE IF NOT EXISTS invoice_extra_charges (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		charge_code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		automatic BOOLEAN NOT NULL,
		applied_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoice_charges_invoice ON invoice_extra_charges(invoice_id);

	-- Financed reconnection fees
	CREATE TABLE IF NOT EXISTS reconnection_plans (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		fee TEXT NOT NULL,
		prior_debt TEXT NOT NULL,
		installment_count INTEGER NOT NULL,
		installment_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plans_customer_status ON reconnection_plans(customer_id, status);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES reconnection_plans(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		invoice_id TEXT,
		due_date TEXT NOT NULL,
		paid_at TEXT,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_installments_plan ON installments(plan_id, number);

	-- Settlement attempts
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

	-- Immutable service-state history
	CREATE TABLE IF NOT EXISTS state_history (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		from_state TEXT NOT NULL,
		new_state TEXT NOT NULL,
		at TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		automatic BOOLEAN NOT NULL,
		actor TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_history_customer ON state_history(customer_id, at);

	-- Best-effort audit log
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		ts TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		module TEXT NOT NULL,
		entity TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		detail_json TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_log(entity, record_id);
	`

	_, err := s.sqldb.Exec(schema)
	return err
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseMoney(s string) core.Money {
	return core.Money{Value: parseDecimal(s)}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := parseDecimal(ns.String)
	return &d
}
