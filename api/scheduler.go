/*
scheduler.go - Automated billing scheduler

PURPOSE:
  Runs the two recurring jobs of the engine in the background:
  - Daily collections sweep (overdue marking + state transitions)
  - Monthly bulk invoice generation for the previous billing period

DESIGN:
  - Single background goroutine with a configurable check interval
  - Each tick decides what is due: the sweep runs at most once per
    calendar day, generation at most once per billing period once the
    configured day-of-month has arrived
  - Jobs are idempotent downstream (the generator skips existing
    invoices, the sweep re-evaluates states), so a missed tick or a
    restart never double-bills

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - GenerateDay:   Day-of-month bulk generation becomes due (default: 1)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunSweep / GenerateBulk endpoints (manual triggers)
  - collections/machine.go: Sweep implementation
  - invoicing/generator.go: Bulk generation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hidrosur/billing-engine/core"
)

// BillingScheduler drives the daily sweep and monthly invoice generation.
type BillingScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	GenerateDay   int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastSweepDay    string // "2026-08-30"
	lastGeneratedAt string // "2026-07", the period last generated
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(handler *Handler) *BillingScheduler {
	return &BillingScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		GenerateDay:   1,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndProcess(time.Now())

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndProcess(time.Now())
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) checkAndProcess(now time.Time) {
	ctx := context.Background()

	day := now.Format("2006-01-02")
	if bs.lastSweepDay != day {
		result, err := bs.Handler.Machine.Sweep(ctx, now)
		if err != nil {
			log.Printf("[Scheduler] Sweep failed: %v", err)
		} else {
			bs.lastSweepDay = day
			if result.Advanced > 0 || result.MarkedOverdue > 0 || result.Failed > 0 {
				log.Printf("[Scheduler] Sweep: %d evaluated, %d advanced, %d marked overdue, %d failed",
					result.Evaluated, result.Advanced, result.MarkedOverdue, result.Failed)
			}
		}
	}

	// Generate the previous period's invoices once its readings are in.
	if now.Day() < bs.GenerateDay {
		return
	}
	period := core.PeriodOf(now).Previous()
	if bs.lastGeneratedAt == period.String() {
		return
	}
	result, err := bs.Handler.Generator.GenerateForAllActive(ctx, period.Month, period.Year)
	if err != nil {
		log.Printf("[Scheduler] Bulk generation for %s failed: %v", period, err)
		return
	}
	bs.lastGeneratedAt = period.String()
	log.Printf("[Scheduler] Generated %s: %d generated, %d skipped, %d failed",
		period, result.Generated, result.Skipped, result.Failed)
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.checkAndProcess(time.Now())
}
