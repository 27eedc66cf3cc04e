// Package store provides bank.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	nextLoan  int64
	nextPay   int64
	loans     map[int64]bank.Loan
	schedules map[int64][]loan.Installment
	payments  map[int64][]bank.Payment
}

func NewMemory() *Memory {
	return &Memory{
		nextLoan:  1,
		nextPay:   1,
		loans:     make(map[int64]bank.Loan),
		schedules: make(map[int64][]loan.Installment),
		payments:  make(map[int64][]bank.Payment),
	}
}

func (m *Memory) CreateLoan(_ context.Context, l *bank.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.ID = m.nextLoan
	m.nextLoan++
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	m.loans[l.ID] = *l
	return nil
}

func (m *Memory) GetLoan(_ context.Context, id int64) (*bank.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.loans[id]
	if !ok {
		return nil, bank.ErrLoanNotFound
	}
	return &l, nil
}

func (m *Memory) ListLoans(_ context.Context) ([]bank.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(bank.Loan) bool { return true }), nil
}

func (m *Memory) ListActiveLoans(_ context.Context) ([]bank.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(l bank.Loan) bool { return l.Status != bank.LoanClosed }), nil
}

func (m *Memory) listLocked(keep func(bank.Loan) bool) []bank.Loan {
	var result []bank.Loan
	for id := int64(1); id < m.nextLoan; id++ {
		if l, ok := m.loans[id]; ok && keep(l) {
			result = append(result, l)
		}
	}
	return result
}

func (m *Memory) SetLoanStatus(_ context.Context, id int64, status bank.LoanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.loans[id]
	if !ok {
		return bank.ErrLoanNotFound
	}
	l.Status = status
	m.loans[id] = l
	return nil
}

func (m *Memory) SaveSchedule(_ context.Context, loanID int64, s *loan.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loans[loanID]; !ok {
		return bank.ErrLoanNotFound
	}
	// Deep copy so later caller mutation cannot leak into the store.
	installments := make([]loan.Installment, len(s.Installments))
	copy(installments, s.Installments)
	for i := range installments {
		if installments[i].PaidDate != nil {
			d := *installments[i].PaidDate
			installments[i].PaidDate = &d
		}
	}
	m.schedules[loanID] = installments
	return nil
}

func (m *Memory) LoadSchedule(_ context.Context, loanID int64) (*loan.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.loans[loanID]; !ok {
		return nil, bank.ErrLoanNotFound
	}
	stored := m.schedules[loanID]
	installments := make([]loan.Installment, len(stored))
	copy(installments, stored)
	for i := range installments {
		if installments[i].PaidDate != nil {
			d := *installments[i].PaidDate
			installments[i].PaidDate = &d
		}
	}
	return &loan.Schedule{Installments: installments}, nil
}

func (m *Memory) RecordPayment(_ context.Context, p *bank.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loans[p.LoanID]; !ok {
		return bank.ErrLoanNotFound
	}
	p.ID = m.nextPay
	m.nextPay++
	m.payments[p.LoanID] = append(m.payments[p.LoanID], *p)
	return nil
}

func (m *Memory) ListPayments(_ context.Context, loanID int64) ([]bank.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]bank.Payment, len(m.payments[loanID]))
	copy(result, m.payments[loanID])
	return result, nil
}
