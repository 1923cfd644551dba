// Package scheduler drives the trading cycle on a fixed period and keeps
// the exchange connection healthy. Cycles are strictly serialized: a
// single worker goroutine consumes the ticker, so a slow cycle simply
// causes later ticks to be dropped rather than overlapping.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/exchange"
	"adaptive-trading-bot/internal/persistence"

	"github.com/rs/zerolog"
)

// failuresBeforeReconnect is how many consecutive cycle failures force an
// out-of-band reconnect attempt.
const failuresBeforeReconnect = 3

// CycleRunner runs one trading cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// positionReporter is implemented by runners that can report how many
// positions are open, for cycle telemetry.
type positionReporter interface {
	OpenPositionCount() int
}

// Config holds scheduler configuration.
type Config struct {
	CycleInterval  time.Duration `json:"cycle_interval"`
	HealthInterval time.Duration `json:"health_interval"`
	SaveEvery      int           `json:"save_every"` // cycles between brain saves
}

// Scheduler owns the cycle loop and the connection-health loop.
type Scheduler struct {
	mu      sync.Mutex
	running bool

	config      Config
	runner      CycleRunner
	client      exchange.Client
	brain       *brain.Brain
	store       persistence.Client
	reconnector *Reconnector
	bus         *events.Bus
	logger      zerolog.Logger

	stopChan        chan struct{}
	wg              sync.WaitGroup
	cycleInProgress atomic.Bool
	cycleCount      atomic.Int64
	failures        int
}

// New creates a scheduler. store may be nil to disable periodic saves.
func New(
	config Config,
	runner CycleRunner,
	client exchange.Client,
	br *brain.Brain,
	store persistence.Client,
	bus *events.Bus,
	logger zerolog.Logger,
) *Scheduler {
	if config.CycleInterval <= 0 {
		config.CycleInterval = 5 * time.Second
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = 15 * time.Second
	}
	if config.SaveEvery <= 0 {
		config.SaveEvery = 60
	}
	return &Scheduler{
		config:      config,
		runner:      runner,
		client:      client,
		brain:       br,
		store:       store,
		reconnector: NewReconnector(client, bus, logger),
		bus:         bus,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the cycle and health loops.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.failures = 0
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runCycleLoop()
	go s.runHealthLoop()

	s.bus.Publish(events.Event{Type: events.EventTradingStarted, Data: map[string]interface{}{}})
	s.logger.Info().
		Dur("cycle_interval", s.config.CycleInterval).
		Dur("health_interval", s.config.HealthInterval).
		Msg("scheduler started")
	return nil
}

// Stop halts both loops synchronously: when it returns no stale cycle can
// resume.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()

	s.bus.Publish(events.Event{Type: events.EventTradingStopped, Data: map[string]interface{}{}})
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CycleInProgress reports whether a cycle is executing right now.
func (s *Scheduler) CycleInProgress() bool {
	return s.cycleInProgress.Load()
}

// Cycles returns the number of completed cycle attempts.
func (s *Scheduler) Cycles() int64 {
	return s.cycleCount.Load()
}

func (s *Scheduler) runCycleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOneCycle()
		}
	}
}

func (s *Scheduler) runOneCycle() {
	s.cycleInProgress.Store(true)
	defer s.cycleInProgress.Store(false)

	start := time.Now()
	cycle := s.cycleCount.Add(1)

	err := s.runner.RunCycle(context.Background())
	s.brain.RecordCycle()

	if err != nil {
		s.failures++
		s.logger.Warn().
			Err(err).
			Int("consecutive_failures", s.failures).
			Msg("trading cycle failed")

		if s.failures >= failuresBeforeReconnect {
			s.logger.Warn().Msg("repeated cycle failures, forcing reconnect")
			s.reconnector.ForceReconnect(time.Now())
			s.failures = 0
		}
		return
	}

	s.failures = 0
	s.bus.PublishCycleCompleted(cycle, s.openPositionCount(), time.Since(start).Milliseconds())

	if s.store != nil && cycle%int64(s.config.SaveEvery) == 0 {
		s.saveBrain()
	}
}

func (s *Scheduler) openPositionCount() int {
	if pr, ok := s.runner.(positionReporter); ok {
		return pr.OpenPositionCount()
	}
	return 0
}

func (s *Scheduler) runHealthLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			status := s.client.ConnectionStatus()
			if status.Connected {
				continue
			}
			s.reconnector.MaybeReconnect(time.Now())
		}
	}
}

// saveBrain exports the brain through the persistence collaborator.
// Failures are reported, never fatal.
func (s *Scheduler) saveBrain() {
	state, err := s.brain.Export()
	if err != nil {
		s.logger.Error().Err(err).Msg("brain export failed")
		return
	}

	result := s.store.SaveBrain(state)
	if !result.Success {
		s.logger.Warn().Str("message", result.Message).Msg("brain save failed")
		return
	}

	s.bus.Publish(events.Event{
		Type: events.EventBrainSaved,
		Data: map[string]interface{}{"bytes": len(state)},
	})
}
