package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"

	"github.com/go-co-op/gocron"
)

const finalNotifyTimeout = 3 * time.Second

// Run probes the collaborators, sends the startup message, arms the minute
// clock and optionally runs one tick immediately. It blocks until ctx is
// cancelled and then shuts down gracefully. A failed probe returns before
// anything is scheduled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.opts.StartupProbe {
		if err := o.Probe(ctx); err != nil {
			return err
		}
	}

	// Jobs outlive the shutdown signal by up to ShutdownGrace.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	if o.opts.StartupMessage != "" {
		if err := o.Deliver(runCtx, o.opts.StartupMessage); err != nil {
			o.log.Warn("startup notification failed", "error", err)
		}
	}

	if err := o.arm(runCtx); err != nil {
		return err
	}
	o.log.Info("scanner started",
		"rules", len(o.table.Rules()),
		"timezone", o.table.Location().String(),
		"max_concurrency", o.opts.MaxConcurrency,
	)
	if o.opts.RunOnStart {
		o.launch(runCtx, time.Now())
	}

	<-ctx.Done()

	o.shutdown(cancelRun)
	return nil
}

// Probe checks the market data source and, when it supports it, the
// primary notifier.
func (o *Orchestrator) Probe(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()
	if err := o.source.Ping(pctx); err != nil {
		return fmt.Errorf("%w: startup probe: %v", ErrDataSource, err)
	}
	if p, ok := o.primary.(model.Prober); ok {
		nctx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
		defer cancel()
		if err := p.Probe(nctx); err != nil {
			return fmt.Errorf("%w: startup probe: %v", ErrNotification, err)
		}
	}
	if o.health != nil {
		o.health.SetDataSourceOK(true)
	}
	return nil
}

// arm schedules one cron job on every minute in the table's zone. The cron
// callback only launches the tick so the scheduler never blocks on jobs.
func (o *Orchestrator) arm(ctx context.Context) error {
	s := gocron.NewScheduler(o.table.Location())
	_, err := s.Cron("* * * * *").Do(func() {
		// Firings land on the minute boundary; rounding absorbs jitter.
		o.launch(ctx, time.Now().Round(time.Minute))
	})
	if err != nil {
		return fmt.Errorf("scan: schedule tick job: %w", err)
	}
	s.StartAsync()
	o.cron = s
	return nil
}

// launch runs one tick in the background unless shutdown has begun.
func (o *Orchestrator) launch(ctx context.Context, now time.Time) {
	o.mu.Lock()
	if o.stopping {
		o.mu.Unlock()
		return
	}
	o.ticks.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.ticks.Done()
		o.RunTick(ctx, now)
	}()
}

func (o *Orchestrator) shutdown(cancelRun context.CancelFunc) {
	o.log.Info("shutdown signal received, stopping clock")
	if o.cron != nil {
		o.cron.Stop()
	}

	o.mu.Lock()
	o.stopping = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.ticks.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info("in-flight jobs finished")
	case <-time.After(o.opts.ShutdownGrace):
		o.log.Warn("shutdown grace elapsed, abandoning in-flight jobs", "grace", o.opts.ShutdownGrace.String())
	}
	cancelRun()

	if o.opts.ShutdownMessage != "" {
		ctx, cancel := context.WithTimeout(context.Background(), finalNotifyTimeout)
		if err := o.Deliver(ctx, o.opts.ShutdownMessage); err != nil {
			o.log.Warn("shutdown notification failed", "error", err)
		}
		cancel()
	}
	o.log.Info("shutdown complete")
}
