// Package scheduler owns the recurring scan. It is a two-state machine,
// Idle and Running; at most one scan executes at a time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/process"
)

var (
	// ErrAlreadyRunning is returned by Start when a schedule is active.
	ErrAlreadyRunning = errors.New("automation already running")
	// ErrNotRunning is returned by Stop when no schedule is active.
	ErrNotRunning = errors.New("automation not running")
	// ErrRunInProgress is returned by RunNow while a scan is executing.
	ErrRunInProgress = errors.New("a scan is already in progress")
	// ErrInvalidInterval is returned by Start for a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// State is the scheduler state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Runner executes one scan.
type Runner interface {
	Run(ctx context.Context, trigger string) (*process.Report, error)
}

// Status is a snapshot of the scheduler.
type Status struct {
	State     State         `json:"state"`
	Interval  time.Duration `json:"-"`
	Minutes   float64       `json:"interval_minutes,omitempty"`
	Scanning  bool          `json:"scanning"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   *time.Time    `json:"next_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	LastRunID string        `json:"last_run_id,omitempty"`
}

// Scheduler runs the scanner on a fixed interval.
type Scheduler struct {
	runner Runner
	now    func() time.Time

	mu       sync.Mutex
	state    State
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	scanning bool
	lastRun  time.Time
	nextRun  time.Time
	lastErr  string
	lastID   string
}

// New creates an idle Scheduler.
func New(runner Runner) *Scheduler {
	return &Scheduler{runner: runner, now: time.Now, state: StateIdle}
}

// Start moves Idle to Running and schedules a scan every interval. The
// first scan fires after one interval.
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrAlreadyRunning
	}

	s.state = StateRunning
	s.interval = interval
	s.nextRun = s.now().Add(interval)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, s.stop, s.done)

	log.Info().Dur("interval", interval).Msg("Automation started")
	return nil
}

// Stop moves Running to Idle. A scan already executing is not
// interrupted; it finishes in the background.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = StateIdle
	s.nextRun = time.Time{}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	log.Info().Msg("Automation stopped")
	return nil
}

// RunNow executes one scan synchronously. It fails with ErrRunInProgress
// if a scan is executing.
func (s *Scheduler) RunNow(ctx context.Context) (*process.Report, error) {
	if !s.begin() {
		return nil, ErrRunInProgress
	}
	return s.execute(ctx, "manual")
}

// Trigger starts a manual scan in the background and returns at once. It
// fails with ErrRunInProgress if a scan is executing.
func (s *Scheduler) Trigger() error {
	if !s.begin() {
		return ErrRunInProgress
	}
	go s.execute(context.Background(), "manual") //nolint:errcheck
	return nil
}

// Status returns a snapshot of the current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		Scanning:  s.scanning,
		LastError: s.lastErr,
		LastRunID: s.lastID,
	}
	if s.state == StateRunning {
		st.Interval = s.interval
		st.Minutes = s.interval.Minutes()
	}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRun = &t
	}
	if !s.nextRun.IsZero() {
		t := s.nextRun
		st.NextRun = &t
	}
	return st
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.nextRun = s.now().Add(interval)
			s.mu.Unlock()

			if !s.begin() {
				log.Warn().Msg("Previous scan still running, skipping tick")
				continue
			}
			// Scheduled scans are detached from Stop.
			go s.execute(context.Background(), "scheduled") //nolint:errcheck
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanning {
		return false
	}
	s.scanning = true
	return true
}

func (s *Scheduler) execute(ctx context.Context, trigger string) (*process.Report, error) {
	report, err := s.runner.Run(ctx, trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = false
	s.lastRun = s.now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
		log.Error().Err(err).Str("trigger", trigger).Msg("Scan failed")
	}
	if report != nil {
		s.lastID = report.Run.ID
	}
	return report, err
}
