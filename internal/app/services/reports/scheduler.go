package reports

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/retailcore/commerce_layer/internal/app/system"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// Scheduler runs the daily rollup on a cron spec, covering the previous day
// so a run shortly after midnight captures a full day.
type Scheduler struct {
	service *Service
	spec    string
	log     *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Scheduler)(nil)

// NewScheduler constructs a report scheduler. spec defaults to ten minutes
// past midnight UTC.
func NewScheduler(service *Service, spec string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("report-scheduler")
	}
	if spec == "" {
		spec = "10 0 * * *"
	}
	return &Scheduler{service: service, spec: spec, log: log}
}

func (s *Scheduler) Name() string { return "report-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		yesterday := time.Now().UTC().Add(-24 * time.Hour)
		if err := s.service.ComputeAll(runCtx, yesterday); err != nil {
			s.log.WithError(err).Warn("scheduled rollup failed")
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("spec", s.spec).Info("report scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
