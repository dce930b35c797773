package jobmonitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vrag/internal/model"
	appErr "github.com/xxxsen/vrag/internal/pkg/errors"
)

const (
	DefaultInterval   = 60 * time.Second
	DefaultResultFile = "output.mp4"
	unknownFailure    = "unknown failure"
)

// StatusPoller is the part of the generation client the monitor needs.
type StatusPoller interface {
	Poll(ctx context.Context, handle model.JobHandle) (*model.JobStatus, error)
}

type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	Interval   time.Duration
	ResultFile string
	// MaxWait bounds the total wait; zero waits until the job ends or ctx
	// is cancelled.
	MaxWait time.Duration
}

// Monitor holds no per-job state, so one instance may await many handles
// from independent goroutines.
type Monitor struct {
	poller StatusPoller
	cfg    Config
	sleep  SleepFunc
	now    func() time.Time
}

func New(poller StatusPoller, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ResultFile == "" {
		cfg.ResultFile = DefaultResultFile
	}
	return &Monitor{
		poller: poller,
		cfg:    cfg,
		sleep:  sleepContext,
		now:    time.Now,
	}
}

// WithSleep replaces the wait between polls.
func (m *Monitor) WithSleep(fn SleepFunc) *Monitor {
	if fn != nil {
		m.sleep = fn
	}
	return m
}

// Await polls handle until it reaches a terminal state and returns the result
// file location. A failed job yields *model.JobFailedError. Poll errors are
// returned as they are, without retry.
func (m *Monitor) Await(ctx context.Context, handle model.JobHandle) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("handle", string(handle)))
	start := m.now()
	for attempt := 1; ; attempt++ {
		status, err := m.poller.Poll(ctx, handle)
		if err != nil {
			return "", err
		}
		if status == nil {
			return "", fmt.Errorf("job %s: poll returned no status", handle)
		}
		switch status.State {
		case model.JobCompleted:
			location := strings.TrimSuffix(status.OutputLocation, "/")
			if location == "" {
				return "", fmt.Errorf("job %s completed without output location", handle)
			}
			result := location + "/" + m.cfg.ResultFile
			logger.Info("generation job completed",
				zap.String("location", result),
				zap.Int("polls", attempt),
				zap.Duration("elapsed", m.now().Sub(start)),
			)
			return result, nil
		case model.JobFailed:
			reason := strings.TrimSpace(status.FailureReason)
			if reason == "" {
				reason = unknownFailure
			}
			logger.Error("generation job failed", zap.String("reason", reason), zap.Int("polls", attempt))
			return "", &model.JobFailedError{Handle: handle, Reason: reason}
		}
		elapsed := m.now().Sub(start)
		if m.cfg.MaxWait > 0 && elapsed+m.cfg.Interval > m.cfg.MaxWait {
			return "", fmt.Errorf("job %s still %s after %s: %w", handle, status.State, elapsed, appErr.ErrWaitTimeout)
		}
		logger.Info("generation job in progress",
			zap.String("state", status.State.String()),
			zap.Int("polls", attempt),
			zap.Duration("elapsed", elapsed),
		)
		if err := m.sleep(ctx, m.cfg.Interval); err != nil {
			return "", err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
