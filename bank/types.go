/*
Package bank owns loan accounts and their schedule state.

PURPOSE:
  The loan package is a pure engine: it transforms schedule snapshots it is
  handed. This package is the host side of that contract. It keeps one
  schedule per loan, serializes every read-modify-write on it behind a
  per-loan lock, and persists the mutated state through the Store interface.

KEY CONCEPTS:
  - Loan: The account record with its derived summary figures
  - Payment: Audit log entry for each incoming payment
  - Store: Persistence boundary (sqlite in production, memory in tests)
  - Book: The operations facade with per-loan mutual exclusion

CONCURRENCY:
  Accrual and allocation on the same loan must never interleave (both are
  read-modify-write on one mutable aggregate). The Book holds one mutex per
  loan ID; operations across different loans run in parallel.

SEE ALSO:
  - book.go: Operations and locking
  - store.go: Store interface
  - store/memory.go: In-memory Store for tests
*/
package bank

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// LOAN - Account record
// =============================================================================

type LoanStatus string

const (
	LoanActive LoanStatus = "active"
	LoanClosed LoanStatus = "closed" // every installment paid
)

// Loan is one loan account. MonthlyPayment and TotalAmount are derived from
// the generated schedule at open time and kept for display; the schedule
// itself is the source of truth.
type Loan struct {
	ID                int64
	Principal         decimal.Decimal
	TermMonths        int
	AnnualRatePercent decimal.Decimal
	MonthlyPayment    decimal.Decimal
	TotalAmount       decimal.Decimal
	StartDate         loan.Date
	Status            LoanStatus
	CreatedAt         time.Time
}

// Payment is the audit record of one incoming payment against a loan.
// PenaltyPaid is the penalty portion collected by that payment's allocation.
type Payment struct {
	ID          int64
	LoanID      int64
	Amount      decimal.Decimal
	PenaltyPaid decimal.Decimal
	PaidAt      loan.Date
}
