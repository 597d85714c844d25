package dbclient

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"sqlplugin/internal/logging"
)

// Validator is anything that can prove the database is reachable.
type Validator interface {
	Validate(ctx context.Context) error
}

// Keepalive runs the pool's test query on a schedule and reports every outcome.
type Keepalive struct {
	pool   Validator
	every  time.Duration
	report func(error)
	logger *log.Logger
	sched  *cron.Cron
}

// NewKeepalive schedules pool validation every interval. report receives nil on success.
func NewKeepalive(pool Validator, every time.Duration, report func(error), logger *log.Logger) *Keepalive {
	logger = logging.OrDiscard(logger).With("component", "keepalive")
	return &Keepalive{
		pool:   pool,
		every:  every,
		report: report,
		logger: logger,
		sched:  cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
	}
}

// Start begins the schedule. Intervals under a second disable it.
func (k *Keepalive) Start() error {
	if k.every < time.Second {
		k.logger.Debug("Keepalive disabled", "every", k.every)
		return nil
	}
	if _, err := k.sched.AddFunc(fmt.Sprintf("@every %s", k.every), func() { k.Check(context.Background()) }); err != nil {
		return fmt.Errorf("schedule keepalive: %w", err)
	}
	k.sched.Start()
	k.logger.Debug("Keepalive started", "every", k.every)
	return nil
}

// Check validates the pool once and reports the result.
func (k *Keepalive) Check(ctx context.Context) {
	err := k.pool.Validate(ctx)
	if err != nil {
		k.logger.Warn("Keepalive check failed", "err", err)
	}
	if k.report != nil {
		k.report(err)
	}
}

// Stop halts the schedule and waits for a running check, or for ctx.
func (k *Keepalive) Stop(ctx context.Context) {
	done := k.sched.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts the plugin logger to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
