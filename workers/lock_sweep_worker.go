package workers

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// IdleSweeper releases in-memory match state that has gone unused.
// *services.MatchService implements it.
type IdleSweeper interface {
	SweepIdleLocks(maxIdle time.Duration) int
}

// LockSweepWorker periodically evicts idle per-match lock entries so
// abandoned in-progress matches do not pin their caches forever.
type LockSweepWorker struct {
	sweeper  IdleSweeper
	interval time.Duration
	maxIdle  time.Duration

	sched gocron.Scheduler
}

func NewLockSweepWorker(sweeper IdleSweeper, interval, maxIdle time.Duration) *LockSweepWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	return &LockSweepWorker{sweeper: sweeper, interval: interval, maxIdle: maxIdle}
}

func (w *LockSweepWorker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.sweeper.SweepIdleLocks(w.maxIdle) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule lock sweep: %w", err)
	}

	w.sched = sched
	sched.Start()
	log.Printf("🧹 [SWEEP] Lock sweep worker started (every %s, idle after %s)", w.interval, w.maxIdle)
	return nil
}

func (w *LockSweepWorker) Stop() {
	if w.sched == nil {
		return
	}
	if err := w.sched.Shutdown(); err != nil {
		log.Printf("[SWEEP] ⚠️ scheduler shutdown: %v", err)
	}
}
