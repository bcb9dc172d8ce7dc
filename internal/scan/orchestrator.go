package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/indicator"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/logger"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/metrics"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/signal"

	"github.com/go-co-op/gocron"
)

var (
	// ErrDataSource wraps market data failures and empty windows.
	ErrDataSource = errors.New("data source")
	// ErrNotification means both the primary and the alternate delivery failed.
	ErrNotification = errors.New("notification failed")
)

// Options tunes the orchestrator. Zero values fall back to the defaults
// noted per field.
type Options struct {
	Params         indicator.Params
	WindowSize     int           // candles per fetch, default Params.MinWindow()
	MaxConcurrency int           // default 4
	FetchTimeout   time.Duration // default 10s
	NotifyTimeout  time.Duration // default 10s
	ShutdownGrace  time.Duration // 0 abandons in-flight jobs immediately
	RunOnStart     bool
	StartupProbe   bool

	// Sent best-effort by Run. Empty skips the message.
	StartupMessage  string
	ShutdownMessage string
}

// Deps are the orchestrator's collaborators. Alternate, Health and Logger
// are optional.
type Deps struct {
	Table     *Table
	Source    model.MarketData
	Detector  *signal.Detector
	Primary   model.Notifier
	Alternate model.Notifier
	Dedup     Deduper
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Logger    *slog.Logger
}

// Orchestrator owns the schedule table, the dedup set and the in-flight set.
type Orchestrator struct {
	table     *Table
	source    model.MarketData
	detector  *signal.Detector
	primary   model.Notifier
	alternate model.Notifier
	dedup     Deduper
	prom      *metrics.Metrics
	health    *metrics.HealthStatus
	log       *slog.Logger
	opts      Options

	sem chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopping bool
	ticks    sync.WaitGroup

	cron *gocron.Scheduler
}

// New wires an orchestrator. Table, Source, Detector, Primary, Dedup and
// Metrics are required.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Table == nil:
		return nil, errors.New("scan: table is required")
	case deps.Source == nil:
		return nil, errors.New("scan: market data source is required")
	case deps.Detector == nil:
		return nil, errors.New("scan: detector is required")
	case deps.Primary == nil:
		return nil, errors.New("scan: primary notifier is required")
	case deps.Dedup == nil:
		return nil, errors.New("scan: deduper is required")
	case deps.Metrics == nil:
		return nil, errors.New("scan: metrics are required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if opts.WindowSize < opts.Params.MinWindow() {
		opts.WindowSize = opts.Params.MinWindow()
	}
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		table:     deps.Table,
		source:    deps.Source,
		detector:  deps.Detector,
		primary:   deps.Primary,
		alternate: deps.Alternate,
		dedup:     deps.Dedup,
		prom:      deps.Metrics,
		health:    deps.Health,
		log:       log.With(slog.String("component", "scan")),
		opts:      opts,
		sem:       make(chan struct{}, opts.MaxConcurrency),
		inFlight:  make(map[string]struct{}),
	}, nil
}

// Report summarises one tick.
type Report struct {
	Tick   Tick
	TickID string

	Candidates  int // jobs listed by the due rules, before dedup
	Claimed     int
	Duplicates  int
	InFlight    int // claimed but skipped, pair still running from an earlier tick
	DedupErrors int

	Evaluated    int // reached the detector
	Signals      int
	Insufficient int
	DataErrors   int
	NotifyErrors int
	Panics       int
}

type jobResult struct {
	job     Job
	outcome string
	err     error
}

// RunTick evaluates every rule due at now and blocks until all claimed jobs
// have finished. Per-pair failures are contained and counted in the report.
func (o *Orchestrator) RunTick(ctx context.Context, now time.Time) Report {
	start := time.Now()
	tick := NewTick(now)
	tickID := logger.NewTickID()
	ctx = logger.WithTickID(ctx, tickID)

	report := Report{Tick: tick, TickID: tickID}
	jobs := o.table.Jobs(tick)
	report.Candidates = len(jobs)

	// Claims happen on this goroutine, before any job starts, so two rules
	// listing the same pair can never both win.
	var claimed []Job
	for _, j := range jobs {
		ok, err := o.dedup.Claim(ctx, tick, j.Pair)
		if err != nil {
			report.DedupErrors++
			o.prom.DedupErrors.Inc()
			o.log.Warn("dedup claim failed, skipping pair", logger.Attrs(ctx, "pair", j.Pair.Key(), "error", err)...)
			continue
		}
		if !ok {
			report.Duplicates++
			o.prom.JobsTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
			continue
		}
		report.Claimed++
		if !o.enter(j.Pair) {
			report.InFlight++
			o.prom.JobsTotal.WithLabelValues(metrics.ResultInFlight).Inc()
			o.log.Info("pair still running from an earlier tick, skipped", logger.Attrs(ctx, "pair", j.Pair.Key(), "rule", j.Rule)...)
			continue
		}
		claimed = append(claimed, j)
	}

	results := make(chan jobResult, len(claimed))
	var wg sync.WaitGroup
	for _, j := range claimed {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer o.leave(j.Pair)
			results <- o.execute(ctx, j)
		}(j)
	}
	wg.Wait()
	close(results)

	for r := range results {
		o.prom.JobsTotal.WithLabelValues(r.outcome).Inc()
		switch r.outcome {
		case metrics.ResultNoSignal:
			report.Evaluated++
		case metrics.ResultSignal:
			report.Evaluated++
			report.Signals++
		case metrics.ResultNotifyError:
			report.Evaluated++
			report.Signals++
			report.NotifyErrors++
		case metrics.ResultInsufficient:
			report.Insufficient++
		case metrics.ResultDataError:
			report.DataErrors++
		case metrics.ResultPanic:
			report.Panics++
		}
	}

	o.prom.TicksTotal.Inc()
	o.prom.TickDur.Observe(time.Since(start).Seconds())
	o.prom.LastTickTimestamp.Set(float64(tick.Time.Unix()))
	if o.health != nil {
		o.health.SetLastTick(tick.Time, tickID)
	}

	o.log.Info("tick complete", logger.Attrs(ctx,
		"tick", tick.ID,
		"candidates", report.Candidates,
		"claimed", report.Claimed,
		"duplicates", report.Duplicates,
		"in_flight", report.InFlight,
		"evaluated", report.Evaluated,
		"signals", report.Signals,
		"insufficient", report.Insufficient,
		"data_errors", report.DataErrors,
		"notify_errors", report.NotifyErrors,
		"panics", report.Panics,
		"took", time.Since(start).Round(time.Millisecond).String(),
	)...)
	return report
}

func (o *Orchestrator) enter(pair model.Pair) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[pair.Key()]; busy {
		return false
	}
	o.inFlight[pair.Key()] = struct{}{}
	o.prom.InFlight.Inc()
	return true
}

func (o *Orchestrator) leave(pair model.Pair) {
	o.mu.Lock()
	delete(o.inFlight, pair.Key())
	o.prom.InFlight.Dec()
	o.mu.Unlock()
}

// execute runs one job on the worker pool. It never panics.
func (o *Orchestrator) execute(ctx context.Context, j Job) (res jobResult) {
	res.job = j
	select {
	case o.sem <- struct{}{}:
		defer func() { <-o.sem }()
	case <-ctx.Done():
		res.outcome = metrics.ResultDataError
		res.err = fmt.Errorf("%w: %s: %v", ErrDataSource, j.Pair, ctx.Err())
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.outcome = metrics.ResultPanic
			res.err = fmt.Errorf("panic: %v", r)
			o.log.Error("scan job panicked", logger.Attrs(ctx, "pair", j.Pair.Key(), "panic", r, "stack", string(debug.Stack()))...)
		}
	}()

	res.outcome, res.err = o.evaluate(ctx, j)
	switch res.outcome {
	case metrics.ResultInsufficient:
		o.log.Info("skipping pair", logger.Attrs(ctx, "pair", j.Pair.Key(), "reason", res.err)...)
	case metrics.ResultDataError, metrics.ResultNotifyError:
		o.log.Warn("scan job failed", logger.Attrs(ctx, "pair", j.Pair.Key(), "rule", j.Rule, "error", res.err)...)
	}
	return res
}

// evaluate is fetch -> compute -> detect -> notify for one pair.
func (o *Orchestrator) evaluate(ctx context.Context, j Job) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	fetchStart := time.Now()
	window, err := o.source.FetchWindow(fetchCtx, j.Pair, o.opts.WindowSize)
	cancel()
	o.prom.FetchDur.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return metrics.ResultDataError, fmt.Errorf("%w: %s: %v", ErrDataSource, j.Pair, err)
	}
	if len(window) == 0 {
		return metrics.ResultInsufficient, fmt.Errorf("%w: empty window for %s: %w", ErrDataSource, j.Pair, indicator.ErrInsufficientData)
	}

	computeStart := time.Now()
	latest, err := indicator.Latest(window, o.opts.Params)
	o.prom.ComputeDur.Observe(time.Since(computeStart).Seconds())
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			return metrics.ResultInsufficient, fmt.Errorf("%s: %w", j.Pair, err)
		}
		return metrics.ResultDataError, fmt.Errorf("%s: %w", j.Pair, err)
	}

	sig, ok := o.detector.Detect(j.Pair, latest)
	if !ok {
		o.log.Debug("no signal", logger.Attrs(ctx,
			"pair", j.Pair.Key(),
			"trigger", latest.Trigger,
			"upper", latest.UpperBand,
			"lower", latest.LowerBand,
		)...)
		return metrics.ResultNoSignal, nil
	}

	o.prom.SignalsTotal.WithLabelValues(string(sig.Kind), sig.Interval).Inc()
	o.log.Info("signal detected", logger.Attrs(ctx,
		"pair", j.Pair.Key(),
		"kind", string(sig.Kind),
		"price", sig.Price.String(),
		"trigger", sig.Trigger,
		"band", sig.Band,
	)...)

	if err := o.Deliver(ctx, signal.Format(sig, o.table.Location())); err != nil {
		return metrics.ResultNotifyError, err
	}
	return metrics.ResultSignal, nil
}

// Deliver sends text on the primary path and, if that fails, once on the
// alternate path. It returns an error wrapping ErrNotification only when
// both fail.
func (o *Orchestrator) Deliver(ctx context.Context, text string) error {
	pctx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
	err := o.primary.Notify(pctx, text)
	cancel()
	if err == nil {
		o.prom.NotifyTotal.WithLabelValues("primary", "ok").Inc()
		return nil
	}
	o.prom.NotifyTotal.WithLabelValues("primary", "error").Inc()

	if o.alternate == nil {
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	o.log.Warn("primary delivery failed, retrying on alternate path", logger.Attrs(ctx, "error", err)...)

	actx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
	altErr := o.alternate.Notify(actx, text)
	cancel()
	if altErr == nil {
		o.prom.NotifyTotal.WithLabelValues("alternate", "ok").Inc()
		return nil
	}
	o.prom.NotifyTotal.WithLabelValues("alternate", "error").Inc()
	return fmt.Errorf("%w: primary: %v; alternate: %v", ErrNotification, err, altErr)
}
