package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/domain"
	"github.com/hamed0406/turnprobe/internal/probe"
	"github.com/hamed0406/turnprobe/internal/repo"
)

// Publisher is the snapshot side of a cycle.
type Publisher interface {
	Publish(ok bool) error
	Suppress() error
}

// LoopState is Probing until a stop request is observed, then Stopped.
type LoopState int32

const (
	Probing LoopState = iota
	Stopped
)

func (s LoopState) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "probing"
}

// sideEffectTimeout bounds history writes and notifications per cycle.
const sideEffectTimeout = 5 * time.Second

type ProberConfig struct {
	Command      probe.Command
	Target       string
	Interval     time.Duration
	RetryDelay   time.Duration
	SoftTimeout  time.Duration
	HardTimeout  time.Duration
	PollInterval time.Duration
}

// Prober runs probe -> tracker -> publisher on a fixed interval until the
// stop flag is set. It is the only writer of the snapshot and the only
// owner of the failure counter.
type Prober struct {
	Logger    *zap.Logger
	Runner    probe.Runner
	Tracker   *FailureTracker
	Publisher Publisher
	History   repo.ResultStore
	Alerter   *Alerter
	Stop      probe.StopFlag
	cfg       ProberConfig
	state     atomic.Int32
}

func NewProber(
	logger *zap.Logger,
	runner probe.Runner,
	tracker *FailureTracker,
	pub Publisher,
	history repo.ResultStore,
	alerter *Alerter,
	stop probe.StopFlag,
	cfg ProberConfig,
) *Prober {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = probe.DefaultPollInterval
	}
	return &Prober{
		Logger:    logger,
		Runner:    runner,
		Tracker:   tracker,
		Publisher: pub,
		History:   history,
		Alerter:   alerter,
		Stop:      stop,
		cfg:       cfg,
	}
}

// State reports whether the loop is still probing.
func (p *Prober) State() LoopState { return LoopState(p.state.Load()) }

// Run probes immediately, then after every interval, and returns once a
// stop request has been observed at a safe point.
func (p *Prober) Run() {
	p.Logger.Info("prober_started",
		zap.String("target", p.cfg.Target),
		zap.Stringer("cmd", p.cfg.Command),
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("max_failures", p.Tracker.Max()),
	)
	for {
		next, stopped := p.runOnce()
		if stopped || p.sleep(next) {
			break
		}
	}
	p.state.Store(int32(Stopped))
	p.Logger.Info("prober_stopped")
}

// runOnce performs one cycle and returns how long to wait before the next.
func (p *Prober) runOnce() (next time.Duration, stopped bool) {
	if p.Stop.Stopping() {
		return 0, true
	}
	cycleID := uuid.NewString()
	log := p.Logger.With(zap.String("cycle_id", cycleID))

	res, err := p.Runner.Run(p.cfg.Command, p.cfg.SoftTimeout, p.cfg.HardTimeout)
	if errors.Is(err, probe.ErrInterrupted) || p.Stop.Stopping() {
		log.Info("probe_cycle_abandoned", zap.Duration("elapsed", res.Elapsed))
		return 0, true
	}
	if err != nil {
		log.Warn("probe_exec_error", zap.Error(err))
	}

	decision := p.Tracker.Observe(res.Outcome)
	p.apply(log, decision)

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	p.record(ctx, log, cycleID, res, decision)
	if p.Alerter != nil {
		p.Alerter.Observe(ctx, decision, p.Tracker.Failures())
	}

	log.Info("probe_cycle",
		zap.Stringer("outcome", res.Outcome),
		zap.Stringer("decision", decision),
		zap.Int("consecutive_failures", p.Tracker.Failures()),
		zap.Duration("elapsed", res.Elapsed),
	)

	if res.Outcome.Anomalous() {
		return p.cfg.RetryDelay, false
	}
	return p.cfg.Interval, false
}

// apply publishes or withdraws the snapshot. Errors leave the previous
// snapshot in place until the next successful publish.
func (p *Prober) apply(log *zap.Logger, d domain.PublishDecision) {
	var err error
	switch d {
	case domain.PublishOk:
		err = p.Publisher.Publish(true)
	case domain.PublishFailed:
		err = p.Publisher.Publish(false)
	case domain.Suppress:
		err = p.Publisher.Suppress()
	}
	if err != nil {
		log.Warn("snapshot_publish_error", zap.Stringer("decision", d), zap.Error(err))
	}
}

func (p *Prober) record(ctx context.Context, log *zap.Logger, id string, res probe.Result, d domain.PublishDecision) {
	if p.History == nil {
		return
	}
	rec := &domain.ProbeRecord{
		CycleID:   id,
		Target:    p.cfg.Target,
		Outcome:   res.Outcome.Kind,
		ExitCode:  res.Outcome.ExitCode,
		Signal:    int(res.Outcome.Signal),
		ElapsedMS: res.Elapsed.Seconds() * 1000,
		Decision:  d,
		CheckedAt: time.Now().UTC(),
	}
	if err := p.History.Append(ctx, rec); err != nil {
		log.Warn("history_append_error", zap.Error(err))
	}
}

// sleep waits for d, polling the stop flag. It reports whether a stop
// was requested.
func (p *Prober) sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	tick := time.NewTicker(p.cfg.PollInterval)
	defer tick.Stop()
	for {
		if p.Stop.Stopping() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		<-tick.C
	}
}
