package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweep — один цикл сверки. Ошибка логируется, следующий тик идёт своим
// чередом.
type Sweep struct {
	Name string
	Run  func(ctx context.Context) error
}

// Manager оборачивает gocron. Каждый свип регистрируется в singleton-режиме:
// медленный проход не накладывается на собственный следующий тик.
type Manager struct {
	scheduler gocron.Scheduler
	log       *zap.Logger
}

func NewManager(log *zap.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: s, log: log}, nil
}

func (m *Manager) Register(ctx context.Context, interval time.Duration, sweep Sweep) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			if err := sweep.Run(ctx); err != nil {
				m.log.Error("sweep failed",
					zap.String("sweep", sweep.Name),
					zap.Duration("took", time.Since(start)),
					zap.Error(err),
				)
				return
			}
			m.log.Debug("sweep finished",
				zap.String("sweep", sweep.Name),
				zap.Duration("took", time.Since(start)),
			)
		}),
		gocron.WithName(sweep.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register sweep %s: %w", sweep.Name, err)
	}
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.log.Info("scheduler started", zap.Int("jobs", len(m.scheduler.Jobs())))
}

func (m *Manager) Shutdown() error {
	return m.scheduler.Shutdown()
}
