package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler enqueues periodic maintenance tasks.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer *Enqueuer
	log      *zap.Logger
}

// NewScheduler registers the offer expiry job on spec (standard cron syntax
// or a descriptor such as "@hourly").
func NewScheduler(enqueuer *Enqueuer, spec string, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		enqueuer: enqueuer,
		log:      log,
	}
	if _, err := s.cron.AddFunc(spec, s.enqueueOfferExpiry); err != nil {
		return nil, fmt.Errorf("invalid offer expiry schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) enqueueOfferExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Several schedulers may run; only one task per minute is kept.
	err := s.enqueuer.enqueueTask(ctx, NewOfferExpiryTask(),
		asynq.Queue(QueueLow), asynq.MaxRetry(1), asynq.Unique(time.Minute))
	if err != nil {
		s.log.Error("failed to enqueue offer expiry", zap.Error(err))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
