package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 900 * time.Second

// Reconciler runs one reconciliation cycle.
type Reconciler interface {
	Reconcile(ctx context.Context) weather.CycleReport
}

// Scheduler periodically refreshes the stored forecasts.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	reconciler Reconciler
	interval   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(interval time.Duration, reconciler Reconciler) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		reconciler: reconciler,
		interval:   interval,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Interval returns the effective refresh interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first cycle runs one interval after start; cycles never overlap.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.
		Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(s.run)
	if err != nil {
		return err
	}

	log.Printf("scheduler: refreshing forecasts every %s", s.interval)
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: scheduler: reconciliation panicked: %v", r)
		}
	}()

	log.Println("scheduler: running forecast refresh job")
	s.reconciler.Reconcile(s.ctx)
	log.Println("scheduler: completed forecast refresh job")
}

// Stop cancels an in-flight cycle and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
