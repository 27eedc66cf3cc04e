/*
Package sqlite provides a SQLite-backed implementation of bank.Store.

PURPOSE:
  Persists loans, their amortization schedules, and the payment audit log.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  loans:        One row per loan account with derived summary figures
  installments: Schedule state, one row per (loan, sequence)
  payments:     Append-only payment audit log

NUMERIC STORAGE:
  All money columns are TEXT holding exact decimal strings. Amounts never
  pass through binary floating point, so penalty and allocation figures
  round-trip without drift. Dates are TEXT in 2006-01-02 form.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Per-loan write ordering is the
  bank.Book's responsibility; the mutex only protects the connection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery.

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  book := bank.NewBook(store, logger)

SEE ALSO:
  - bank/store.go: Interface definition
  - bank/store/memory.go: In-memory implementation for testing
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
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// Store implements bank.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		principal TEXT NOT NULL,
		term_months INTEGER NOT NULL,
		rate_percent TEXT NOT NULL,
		monthly_payment TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS installments (
		loan_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		paid_date TEXT,
		penalty TEXT NOT NULL,
		penalty_days INTEGER NOT NULL,
		PRIMARY KEY (loan_id, seq),
		FOREIGN KEY (loan_id) REFERENCES loans(id)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		penalty_paid TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		FOREIGN KEY (loan_id) REFERENCES loans(id)
	);

	CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOANS
// =============================================================================

func (s *Store) CreateLoan(ctx context.Context, l *bank.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (principal, term_months, rate_percent, monthly_payment,
			total_amount, start_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Principal.String(), l.TermMonths, l.AnnualRatePercent.String(),
		l.MonthlyPayment.String(), l.TotalAmount.String(),
		l.StartDate.String(), string(l.Status), l.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetLoan(ctx context.Context, id int64) (*bank.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, principal, term_months, rate_percent, monthly_payment,
			total_amount, start_date, status, created_at
		FROM loans WHERE id = ?`, id)

	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, bank.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) ListLoans(ctx context.Context) ([]bank.Loan, error) {
	return s.queryLoans(ctx, `
		SELECT id, principal, term_months, rate_percent, monthly_payment,
			total_amount, start_date, status, created_at
		FROM loans ORDER BY id`)
}

func (s *Store) ListActiveLoans(ctx context.Context) ([]bank.Loan, error) {
	return s.queryLoans(ctx, `
		SELECT id, principal, term_months, rate_percent, monthly_payment,
			total_amount, start_date, status, created_at
		FROM loans WHERE status != ? ORDER BY id`, string(bank.LoanClosed))
}

func (s *Store) SetLoanStatus(ctx context.Context, id int64, status bank.LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE loans SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update loan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return bank.ErrLoanNotFound
	}
	return nil
}

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]bank.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []bank.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*bank.Loan, error) {
	var l bank.Loan
	var principal, rate, monthly, total, start, status, created string

	err := row.Scan(&l.ID, &principal, &l.TermMonths, &rate, &monthly,
		&total, &start, &status, &created)
	if err != nil {
		return nil, err
	}

	if l.Principal, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("loan %d principal: %w", l.ID, err)
	}
	if l.AnnualRatePercent, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("loan %d rate: %w", l.ID, err)
	}
	if l.MonthlyPayment, err = decimal.NewFromString(monthly); err != nil {
		return nil, fmt.Errorf("loan %d monthly payment: %w", l.ID, err)
	}
	if l.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("loan %d total amount: %w", l.ID, err)
	}
	if l.StartDate, err = loan.ParseDate(start); err != nil {
		return nil, fmt.Errorf("loan %d start date: %w", l.ID, err)
	}
	if l.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("loan %d created at: %w", l.ID, err)
	}
	l.Status = bank.LoanStatus(status)
	return &l, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

// SaveSchedule replaces the stored installment rows for a loan atomically.
func (s *Store) SaveSchedule(ctx context.Context, loanID int64, sched *loan.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM installments WHERE loan_id = ?`, loanID); err != nil {
		return fmt.Errorf("clear installments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO installments (loan_id, seq, due_date, amount, principal,
			interest, remaining_balance, status, paid_amount, paid_date,
			penalty, penalty_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range sched.Installments {
		inst := &sched.Installments[i]
		var paidDate any
		if inst.PaidDate != nil {
			paidDate = inst.PaidDate.String()
		}
		_, err := stmt.ExecContext(ctx, loanID, inst.Sequence,
			inst.DueDate.String(), inst.Amount.String(), inst.Principal.String(),
			inst.Interest.String(), inst.RemainingBalance.String(),
			string(inst.Status), inst.PaidAmount.String(), paidDate,
			inst.Penalty.String(), inst.PenaltyDays)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Sequence, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadSchedule(ctx context.Context, loanID int64) (*loan.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM loans WHERE id = ?`, loanID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, bank.ErrLoanNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, due_date, amount, principal, interest, remaining_balance,
			status, paid_amount, paid_date, penalty, penalty_days
		FROM installments WHERE loan_id = ? ORDER BY seq`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedule := &loan.Schedule{}
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("loan %d: %w", loanID, err)
		}
		schedule.Installments = append(schedule.Installments, *inst)
	}
	return schedule, rows.Err()
}

func scanInstallment(rows *sql.Rows) (*loan.Installment, error) {
	var inst loan.Installment
	var due, amount, principal, interest, balance, status, paid, penalty string
	var paidDate sql.NullString

	err := rows.Scan(&inst.Sequence, &due, &amount, &principal, &interest,
		&balance, &status, &paid, &paidDate, &penalty, &inst.PenaltyDays)
	if err != nil {
		return nil, err
	}

	if inst.DueDate, err = loan.ParseDate(due); err != nil {
		return nil, fmt.Errorf("installment %d due date: %w", inst.Sequence, err)
	}
	if inst.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("installment %d amount: %w", inst.Sequence, err)
	}
	if inst.Principal, err = decimal.NewFromString(principal); err != nil {
		return nil, fmt.Errorf("installment %d principal: %w", inst.Sequence, err)
	}
	if inst.Interest, err = decimal.NewFromString(interest); err != nil {
		return nil, fmt.Errorf("installment %d interest: %w", inst.Sequence, err)
	}
	if inst.RemainingBalance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("installment %d balance: %w", inst.Sequence, err)
	}
	if inst.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("installment %d paid amount: %w", inst.Sequence, err)
	}
	if inst.Penalty, err = decimal.NewFromString(penalty); err != nil {
		return nil, fmt.Errorf("installment %d penalty: %w", inst.Sequence, err)
	}
	if paidDate.Valid {
		d, err := loan.ParseDate(paidDate.String)
		if err != nil {
			return nil, fmt.Errorf("installment %d paid date: %w", inst.Sequence, err)
		}
		inst.PaidDate = &d
	}
	inst.Status = loan.InstallmentStatus(status)
	return &inst, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) RecordPayment(ctx context.Context, p *bank.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (loan_id, amount, penalty_paid, paid_at)
		VALUES (?, ?, ?, ?)`,
		p.LoanID, p.Amount.String(), p.PenaltyPaid.String(), p.PaidAt.String())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListPayments(ctx context.Context, loanID int64) ([]bank.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, amount, penalty_paid, paid_at
		FROM payments WHERE loan_id = ? ORDER BY id`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []bank.Payment
	for rows.Next() {
		var p bank.Payment
		var amount, penalty, paidAt string
		if err := rows.Scan(&p.ID, &p.LoanID, &amount, &penalty, &paidAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %d amount: %w", p.ID, err)
		}
		if p.PenaltyPaid, err = decimal.NewFromString(penalty); err != nil {
			return nil, fmt.Errorf("payment %d penalty: %w", p.ID, err)
		}
		if p.PaidAt, err = loan.ParseDate(paidAt); err != nil {
			return nil, fmt.Errorf("payment %d paid at: %w", p.ID, err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
