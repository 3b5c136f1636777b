/*
Package sqlite provides SQLite-backed persistence for the billing shell.

PURPOSE:
  The engine itself performs no I/O; this package is where the shell
  keeps what must outlive the process:

    invoices:  every generated invoice, one row per draft id. The
               last-fully-invoiced period number per ruleset is derived
               from this table (MAX over period_number), which is what
               keeps a done period from ever becoming pending again.
    rulesets:  ruleset configuration as JSON documents (see factory).
    documents: free-form JSON config documents (company profile etc.).

DOUBLE-GENERATION GUARD:
  The invoices primary key is the draft id. Because periodic draft ids
  are a pure function of ruleset + period, inserting the same period
  twice fails at the database - the last line of defense under the
  at-most-once generation rule.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - session: Consumes LastInvoicedPeriods at bootstrap
  - api: Persists invoices through SaveInvoice inside the generation callback
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// Store implements the billing shell's persistence.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Generated invoices. The primary key is the draft id; a periodic
	-- period can therefore only ever be generated once.
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		ruleset_id TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		month INTEGER NOT NULL DEFAULT 0,
		period_number INTEGER NOT NULL DEFAULT -1,
		label TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		invoice_no TEXT,
		customer TEXT,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_ruleset_period
		ON invoices(ruleset_id, period_number DESC);
	CREATE INDEX IF NOT EXISTS idx_invoices_created_at
		ON invoices(created_at);

	-- Ruleset configuration documents (JSON, see factory package).
	CREATE TABLE IF NOT EXISTS rulesets (
		id TEXT PRIMARY KEY,
		doc_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Free-form configuration documents (company profile etc.).
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		doc_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INVOICES
// =============================================================================

// InvoiceRecord is one persisted invoice. RulesetID is empty and
// PeriodNumber is -1 for ad-hoc invoices.
type InvoiceRecord struct {
	ID           billing.DraftID
	RulesetID    billing.RulesetID
	Year         int
	Month        time.Month
	PeriodNumber int
	Label        string
	Amount       decimal.Decimal
	Description  string
	InvoiceNo    string
	Customer     string
	IssueDate    time.Time
	DueDate      time.Time
	CreatedAt    time.Time
}

// SaveInvoice inserts a generated invoice. Inserting the same draft id
// twice fails - the database-level double-generation guard.
func (s *Store) SaveInvoice(ctx context.Context, rec InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, ruleset_id, year, month, period_number, label,
			amount, description, invoice_no, customer, issue_date, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.RulesetID), rec.Year, int(rec.Month), rec.PeriodNumber,
		rec.Label, rec.Amount.String(), rec.Description, rec.InvoiceNo, rec.Customer,
		rec.IssueDate.Format(time.RFC3339), rec.DueDate.Format(time.RFC3339),
		rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save invoice %s: %w", rec.ID, err)
	}
	return nil
}

// ListInvoices returns all generated invoices, newest first.
func (s *Store) ListInvoices(ctx context.Context) ([]InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ruleset_id, year, month, period_number, label, amount,
			description, invoice_no, customer, issue_date, due_date, created_at
		FROM invoices ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastInvoicedPeriods returns, per ruleset, the highest period number
// ever generated. Rulesets with no generated invoices are absent.
func (s *Store) LastInvoicedPeriods(ctx context.Context) (map[billing.RulesetID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ruleset_id, MAX(period_number) FROM invoices
		WHERE ruleset_id != '' GROUP BY ruleset_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	last := make(map[billing.RulesetID]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		last[billing.RulesetID(id)] = n
	}
	return last, rows.Err()
}

func scanInvoice(rows *sql.Rows) (InvoiceRecord, error) {
	var (
		rec                           InvoiceRecord
		id, rulesetID, amount         string
		month                         int
		issueDate, dueDate, createdAt string
	)
	err := rows.Scan(&id, &rulesetID, &rec.Year, &month, &rec.PeriodNumber, &rec.Label,
		&amount, &rec.Description, &rec.InvoiceNo, &rec.Customer, &issueDate, &dueDate, &createdAt)
	if err != nil {
		return rec, err
	}
	rec.ID = billing.DraftID(id)
	rec.RulesetID = billing.RulesetID(rulesetID)
	rec.Month = time.Month(month)
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return rec, fmt.Errorf("invoice %s: bad amount %q: %w", id, amount, err)
	}
	if rec.IssueDate, err = time.Parse(time.RFC3339, issueDate); err != nil {
		return rec, err
	}
	if rec.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return rec, err
	}
	return rec, nil
}

// =============================================================================
// RULESET DOCUMENTS
// =============================================================================

// SaveRuleset upserts a ruleset's JSON document.
func (s *Store) SaveRuleset(ctx context.Context, id billing.RulesetID, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rulesets (id, doc_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc_json = excluded.doc_json, updated_at = excluded.updated_at`,
		string(id), doc, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListRulesetDocuments returns all ruleset documents keyed by id.
func (s *Store) ListRulesetDocuments(ctx context.Context) (map[billing.RulesetID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, doc_json FROM rulesets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make(map[billing.RulesetID]string)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		docs[billing.RulesetID(id)] = doc
	}
	return docs, rows.Err()
}

// DeleteRuleset removes a ruleset document. Generated invoices are kept;
// they are history, not configuration.
func (s *Store) DeleteRuleset(ctx context.Context, id billing.RulesetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM rulesets WHERE id = ?`, string(id))
	return err
}

// =============================================================================
// CONFIG DOCUMENTS
// =============================================================================

// PutDocument upserts a free-form JSON config document.
func (s *Store) PutDocument(ctx context.Context, key, doc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, doc_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET doc_json = excluded.doc_json, updated_at = excluded.updated_at`,
		key, doc, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetDocument returns a config document and whether it exists.
func (s *Store) GetDocument(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc_json FROM documents WHERE key = ?`, key).Scan(&doc)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc, true, nil
}
