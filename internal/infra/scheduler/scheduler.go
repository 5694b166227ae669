package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"maizey-chat/internal/domain/ports/repository"
	"maizey-chat/internal/infra/metrics"
)

// Scheduler periodically removes expired chat records from backends that
// have no native expiry.
type Scheduler struct {
	interval time.Duration
	purger   repository.Purger
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler runs purger.PurgeExpired every interval.
// If interval <= 0 it defaults to 1 hour.
func NewScheduler(interval time.Duration, purger repository.Purger, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Scheduler{
		interval: interval,
		purger:   purger,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("[scheduler] started")
	s.RunOnce(s.ctx)
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("[scheduler] context cancelled; stopping")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce purges with a bounded timeout and returns the number removed.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := s.purger.PurgeExpired(runCtx)
	if err != nil {
		s.log.Warn().Err(err).Msg("[scheduler] purge failed")
		return 0
	}
	metrics.AddPurged(n)
	if n > 0 {
		s.log.Info().Int64("purged", n).Msg("[scheduler] expired chat records removed")
	}
	return n
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("[scheduler] stopped")
}
