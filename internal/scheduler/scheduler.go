package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is a unit of periodic maintenance.
type Task func(ctx context.Context) error

// Manager runs maintenance jobs on cron schedules evaluated in UTC.
type Manager struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	timeout   time.Duration
}

// NewManager creates a manager. Each run gets its own context bounded by timeout.
func NewManager(logger *zap.Logger, timeout time.Duration) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: s, logger: logger.Named("scheduler"), timeout: timeout}, nil
}

// Register adds a named cron job. Overlapping runs are skipped.
func (m *Manager) Register(name, cron string, task Task) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(func() { m.run(name, task) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	m.logger.Info("job registered", zap.String("job", name), zap.String("cron", cron))
	return nil
}

func (m *Manager) run(name string, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	if err := task(ctx); err != nil {
		m.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	m.logger.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Start begins scheduling.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Shutdown stops scheduling and waits for running jobs.
func (m *Manager) Shutdown() error {
	return m.scheduler.Shutdown()
}
