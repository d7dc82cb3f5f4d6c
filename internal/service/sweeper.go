package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Leganyst/studio-booking/internal/calendar"
)

// ErrSweepInProgress - предыдущий проход ещё не закончился.
var ErrSweepInProgress = errors.New("sweep already in progress")

type expirer interface {
	SweepExpired(ctx context.Context, asOf time.Time) (int, error)
}

// Sweeper раз в interval истекает просроченные платежи.
// Проходы не пересекаются: тик, пришедший во время прохода, пропускается.
type Sweeper struct {
	target   expirer
	clock    calendar.Clock
	interval time.Duration
	log      *logrus.Entry

	running atomic.Bool
}

func NewSweeper(target expirer, clock calendar.Clock, interval time.Duration, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		target:   target,
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

// Run крутится до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.log.WithError(err).Warn("sweep failed")
			}
		}
	}
}

// Tick выполняет один проход; если проход уже идёт, возвращает ErrSweepInProgress.
func (s *Sweeper) Tick(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sweep skipped: previous run still active")
		return 0, ErrSweepInProgress
	}
	defer s.running.Store(false)

	return s.target.SweepExpired(ctx, s.clock.Now())
}
