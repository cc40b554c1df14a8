package statistic

import (
	"chatstat/internal/providers"
	"chatstat/internal/statistic/interfaces"
	"chatstat/internal/structures"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface
	persister interfaces.PersisterInterface
	cron      *gron.Cron
	opsMu     sync.Mutex
}

// Init schedules persistence every storage.saveInterval. gron rounds the
// interval down to whole seconds, with a one second minimum.
func (s *Scheduler) Init() {
	interval := s.config.Storage.SaveInterval
	if interval <= 0 {
		s.logger.Warnf(providers.TypeApp, "Periodic persistence disabled")
		return
	}
	s.cron = gron.New()
	s.cron.AddFunc(gron.Every(interval), func() {
		if err := s.persist(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		s.logger.Debugf(providers.TypeApp, "Persisted data to %s", s.config.Storage.DataDir)
	})
	s.cron.Start()
}

// Stop halts the schedule and waits for a persist already in progress.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.opsMu.Lock()
	s.opsMu.Unlock()
}

func (s *Scheduler) Restore() error {
	return s.persister.Restore()
}

func (s *Scheduler) Persist() error {
	s.logger.Infof(providers.TypeApp, "Persisting shards and cursors...")
	err := s.persist()
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}

func (s *Scheduler) persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	start := time.Now()
	err := s.persister.Persist()
	s.metrics.ObservePersistenceDuration(time.Since(start))
	return err
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, persister interfaces.PersisterInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:    config,
		logger:    logger,
		metrics:   metrics,
		persister: persister,
	}
}
