package invoicestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var storageTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "invoicestore_functions_time",
		Help:    "Invoice store functions execution duration distribution in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 1, 5, 10},
	},
	[]string{"method"},
)

const invoiceColumns = `id, amount, currency, status, payee_address, payer_address, settlement_ref, payment_url, created_at, updated_at`

var schemas = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payee_address TEXT NOT NULL,
			payer_address TEXT,
			settlement_ref TEXT,
			payment_url TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invoices_payee ON invoices(LOWER(payee_address));
	`,
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			amount NUMERIC(78, 0) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payee_address TEXT NOT NULL,
			payer_address TEXT,
			settlement_ref TEXT,
			payment_url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invoices_payee ON invoices(LOWER(payee_address));
	`,
}

// SQLStore keeps invoices in SQLite or PostgreSQL.
type SQLStore struct {
	logger *zap.Logger
	db     *sql.DB
	driver string
}

func NewSQLStore(logger *zap.Logger, driver, dsn string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == DriverSQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent settlements.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	logger.Info("invoice store is ready", zap.String("driver", driver))
	return &SQLStore{logger: logger, db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func observe(method string) *prometheus.Timer {
	return prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		storageTimeHistogramVec.WithLabelValues(method).Observe(v)
	}))
}

// rebind converts '?' placeholders to the driver's syntax.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *SQLStore) CreateInvoice(ctx context.Context, invoice core.Invoice) error {
	timer := observe("create_invoice")
	defer timer.ObserveDuration()

	query := s.rebind(`INSERT INTO invoices (` + invoiceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		invoice.ID,
		invoice.Amount.String(),
		invoice.Currency,
		string(invoice.Status),
		invoice.PayeeAddress,
		nullString(invoice.PayerAddress),
		nullString(invoice.SettlementRef),
		invoice.PaymentURL,
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return core.ErrEntityExists
	}
	if err != nil {
		return errors.Wrap(err, "insert invoice")
	}
	return nil
}

func (s *SQLStore) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	timer := observe("get_invoice")
	defer timer.ObserveDuration()

	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`), id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrEntityNotFound
	}
	if err != nil {
		return core.Invoice{}, errors.Wrap(err, "select invoice")
	}
	return invoice, nil
}

// MarkInvoicePaid moves a pending invoice to the paid state with a single conditional update.
// The second return value is false if the invoice does not exist or is not pending,
// in that case nothing is changed.
func (s *SQLStore) MarkInvoicePaid(ctx context.Context, id string, settlement core.Settlement) (core.Invoice, bool, error) {
	timer := observe("mark_invoice_paid")
	defer timer.ObserveDuration()

	query := s.rebind(`UPDATE invoices
		SET status = ?, payer_address = ?, settlement_ref = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := s.db.ExecContext(ctx, query,
		string(core.InvoiceStatusPaid),
		nullString(settlement.PayerAddress),
		settlement.Ref,
		settlement.SettledAt.UTC(),
		id,
		string(core.InvoiceStatusPending),
	)
	if err != nil {
		return core.Invoice{}, false, errors.Wrap(err, "update invoice")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Invoice{}, false, errors.Wrap(err, "rows affected")
	}
	if affected == 0 {
		return core.Invoice{}, false, nil
	}
	// paid is terminal, so this read observes exactly what the update wrote.
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, true, err
	}
	return invoice, true, nil
}

func (s *SQLStore) ListInvoicesByPayee(ctx context.Context, payee string, limit int) ([]core.Invoice, error) {
	timer := observe("list_invoices_by_payee")
	defer timer.ObserveDuration()

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE LOWER(payee_address) = LOWER(?) ORDER BY created_at DESC`
	args := []any{payee}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "select invoices")
	}
	defer rows.Close()
	var invoices []core.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan invoice")
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (core.Invoice, error) {
	var (
		invoice       core.Invoice
		status        string
		payerAddress  sql.NullString
		settlementRef sql.NullString
		createdAt     time.Time
		updatedAt     time.Time
	)
	err := row.Scan(
		&invoice.ID,
		&invoice.Amount,
		&invoice.Currency,
		&status,
		&invoice.PayeeAddress,
		&payerAddress,
		&settlementRef,
		&invoice.PaymentURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return core.Invoice{}, err
	}
	invoice.Status = core.InvoiceStatus(status)
	if payerAddress.Valid {
		invoice.PayerAddress = &payerAddress.String
	}
	if settlementRef.Valid {
		invoice.SettlementRef = &settlementRef.String
	}
	invoice.CreatedAt = createdAt.UTC()
	invoice.UpdatedAt = updatedAt.UTC()
	return invoice, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
