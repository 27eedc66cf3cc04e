/*
scheduler.go - Periodic penalty sweep

PURPOSE:
  Re-accrues overdue penalties across all active loans on a schedule. The
  sweep is an idempotent function of the evaluation date, so a missed tick
  needs no catch-up logic: the next run produces the same state.

DESIGN:
  - cron-driven (default hourly); the spec string is standard cron syntax
    plus the @every / @hourly descriptors
  - Runs once immediately on Start so a fresh process has current penalties
  - Each loan is swept under its own lock; no global pause

USAGE:
  sweeper := api.NewPenaltySweeper(book, logger, "@hourly")
  if err := sweeper.Start(); err != nil { ... }
  defer sweeper.Stop()

SEE ALSO:
  - bank/book.go: SweepPenalties
  - handlers.go: TriggerSweep endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// PenaltySweeper runs the periodic penalty accrual across all active loans.
type PenaltySweeper struct {
	Book *bank.Book
	Log  *logrus.Logger
	Spec string // cron spec, e.g. "@hourly" or "0 3 * * *"

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPenaltySweeper creates a sweeper with the given cron spec.
func NewPenaltySweeper(book *bank.Book, log *logrus.Logger, spec string) *PenaltySweeper {
	if log == nil {
		log = logrus.New()
	}
	if spec == "" {
		spec = "@hourly"
	}
	return &PenaltySweeper{Book: book, Log: log, Spec: spec}
}

// Start schedules the sweep and runs one immediately.
func (ps *PenaltySweeper) Start() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cron != nil {
		return nil // already running
	}

	c := cron.New()
	if _, err := c.AddFunc(ps.Spec, ps.sweep); err != nil {
		return err
	}
	ps.cron = c
	c.Start()

	ps.Log.WithField("spec", ps.Spec).Info("penalty sweeper started")
	go ps.sweep()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (ps *PenaltySweeper) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cron == nil {
		return
	}
	ctx := ps.cron.Stop()
	<-ctx.Done()
	ps.cron = nil
	ps.Log.Info("penalty sweeper stopped")
}

func (ps *PenaltySweeper) sweep() {
	asOf := loan.Today()
	changed, err := ps.Book.SweepPenalties(context.Background(), asOf)
	if err != nil {
		ps.Log.WithError(err).Error("penalty sweep failed")
		return
	}
	if changed > 0 {
		ps.Log.WithFields(logrus.Fields{
			"as_of":   asOf.String(),
			"changed": changed,
		}).Info("penalty sweep completed")
	}
}
