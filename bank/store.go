package bank

import (
	"context"
	"errors"

	"github.com/warp/loan-engine/loan"
)

// ErrLoanNotFound is returned when a loan ID does not exist.
var ErrLoanNotFound = errors.New("loan not found")

// =============================================================================
// STORE - Persistence boundary
// =============================================================================

// Store persists loans, schedules, and the payment audit log. Implementations
// must be safe for concurrent use; the Book guarantees that schedule writes
// for one loan never race each other, but reads and writes for different
// loans do overlap.
//
// Amounts are exact decimals end to end. A Store must round-trip them without
// converting through binary floating point.
type Store interface {
	// CreateLoan persists a new loan and assigns its ID.
	CreateLoan(ctx context.Context, l *Loan) error

	// GetLoan returns the loan or ErrLoanNotFound.
	GetLoan(ctx context.Context, id int64) (*Loan, error)

	// ListLoans returns all loans, oldest first.
	ListLoans(ctx context.Context) ([]Loan, error)

	// ListActiveLoans returns loans that are not closed, oldest first.
	ListActiveLoans(ctx context.Context) ([]Loan, error)

	// SetLoanStatus updates a loan's status.
	SetLoanStatus(ctx context.Context, id int64, status LoanStatus) error

	// SaveSchedule replaces the stored schedule for a loan.
	SaveSchedule(ctx context.Context, loanID int64, s *loan.Schedule) error

	// LoadSchedule returns the stored schedule for a loan. An empty schedule
	// (no installments) is returned as an empty Schedule value, not an error;
	// callers decide whether that is acceptable.
	LoadSchedule(ctx context.Context, loanID int64) (*loan.Schedule, error)

	// RecordPayment appends a payment audit record and assigns its ID.
	RecordPayment(ctx context.Context, p *Payment) error

	// ListPayments returns the payment log for a loan, oldest first.
	ListPayments(ctx context.Context, loanID int64) ([]Payment, error)
}
