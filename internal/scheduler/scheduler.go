package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// cycleRunner is the minimal interface the scheduler needs from the
// dispatch service; a small fake implements it in tests.
type cycleRunner interface {
	RunCycle(ctx context.Context) ([]domain.SendResult, error)
}

// Scheduler drives the dispatch loop: one cycle per ticker tick.
// Cycles never overlap - a cycle running long delays the next tick's
// cycle until all tenant groups have joined (at most one tick is
// buffered meanwhile).
type Scheduler struct {
	dispatch     cycleRunner
	interval     time.Duration
	cycleTimeout time.Duration

	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	// Statistics
	lastRunAt      time.Time
	messagesSent   int64
	messagesFailed int64
	cyclesCount    int64
}

func NewScheduler(dispatch cycleRunner, interval, cycleTimeout time.Duration) *Scheduler {
	return &Scheduler{
		dispatch:     dispatch,
		interval:     interval,
		cycleTimeout: cycleTimeout,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Dispatcher is already running")
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	logger.Infof("Starting dispatcher with cycle interval %v", s.interval)

	go s.run(ctx)

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneChan)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)

		case <-s.stopChan:
			logger.Warnf("Dispatcher received stop signal")
			return

		case <-ctx.Done():
			logger.Warnf("Dispatcher context cancelled")
			return
		}
	}
}

// runCycle executes one dispatch cycle under the per-cycle deadline so
// a hung external call cannot stall the loop indefinitely. Cycle errors
// are logged and the loop carries on to the next tick.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.cyclesCount++
	cycleNumber := s.cyclesCount
	s.mu.Unlock()

	logger.Debugf("[Cycle #%d] Starting dispatch cycle", cycleNumber)

	cycleCtx := ctx
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	results, err := s.dispatch.RunCycle(cycleCtx)
	if err != nil {
		logger.Errorf("[Cycle #%d] Dispatch cycle failed: %v", cycleNumber, err)
		return
	}

	if len(results) == 0 {
		logger.Debugf("[Cycle #%d] Nothing to dispatch", cycleNumber)
		return
	}

	sent := 0
	for _, r := range results {
		if r.Success {
			sent++
		}
	}

	s.mu.Lock()
	s.messagesSent += int64(sent)
	s.messagesFailed += int64(len(results) - sent)
	s.mu.Unlock()

	logger.Infof("[Cycle #%d] Dispatched %d recipients, %d sent, %d failed",
		cycleNumber, len(results), sent, len(results)-sent)
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		logger.Warnf("Dispatcher is not running")
		return nil
	}

	s.running = false
	stopChan := s.stopChan
	doneChan := s.doneChan
	s.mu.Unlock()

	close(stopChan)
	<-doneChan

	logger.Infof("Dispatcher stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:        s.running,
		LastRunAt:      s.lastRunAt,
		MessagesSent:   s.messagesSent,
		MessagesFailed: s.messagesFailed,
		CyclesCount:    s.cyclesCount,
		Interval:       s.interval,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

type Status struct {
	Running        bool          `json:"running"`
	LastRunAt      time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt      time.Time     `json:"nextRunAt,omitempty"`
	MessagesSent   int64         `json:"messagesSent"`
	MessagesFailed int64         `json:"messagesFailed"`
	CyclesCount    int64         `json:"cyclesCount"`
	Interval       time.Duration `json:"interval"`
}
