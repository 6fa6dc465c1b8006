package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/process"
)

type fakeRunner struct {
	calls    atomic.Int32
	release  chan struct{}
	err      error
	mu       sync.Mutex
	triggers []string
}

func (f *fakeRunner) Run(ctx context.Context, trigger string) (*process.Report, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.triggers = append(f.triggers, trigger)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return &process.Report{Run: models.AutomationRun{ID: "run-" + trigger}}, f.err
}

func TestScheduler_StartStopTransitions(t *testing.T) {
	s := New(&fakeRunner{})
	assert.Equal(t, StateIdle, s.Status().State)

	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
	assert.ErrorIs(t, s.Start(0), ErrInvalidInterval)

	require.NoError(t, s.Start(time.Hour))
	st := s.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 60.0, st.Minutes)
	require.NotNil(t, st.NextRun)

	assert.ErrorIs(t, s.Start(time.Hour), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	st = s.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.NextRun)

	require.NoError(t, s.Start(time.Minute), "restart after stop")
	require.NoError(t, s.Stop())
}

func TestScheduler_TicksRunScans(t *testing.T) {
	r := &fakeRunner{}
	s := New(r)
	require.NoError(t, s.Start(10*time.Millisecond))

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	require.Eventually(t, func() bool { return !s.Status().Scanning }, time.Second, 5*time.Millisecond)
	st := s.Status()
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "run-scheduled", st.LastRunID)
}

func TestScheduler_RunNowRejectsOverlap(t *testing.T) {
	r := &fakeRunner{release: make(chan struct{})}
	s := New(r)

	errs := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		errs <- err
	}()
	require.Eventually(t, func() bool { return s.Status().Scanning }, time.Second, time.Millisecond)

	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(r.release)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), r.calls.Load())
	assert.False(t, s.Status().Scanning)
}

func TestScheduler_SkipsTickWhileScanning(t *testing.T) {
	r := &fakeRunner{release: make(chan struct{})}
	s := New(r)
	require.NoError(t, s.Start(5*time.Millisecond))

	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load(), "ticks during a scan are skipped")

	require.NoError(t, s.Stop())
	assert.True(t, s.Status().Scanning, "stop does not interrupt the scan")
	close(r.release)
	require.Eventually(t, func() bool { return !s.Status().Scanning }, time.Second, time.Millisecond)
}

func TestScheduler_RecordsLastError(t *testing.T) {
	s := New(&fakeRunner{err: errors.New("db gone")})
	_, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, "db gone", s.Status().LastError)
	assert.Equal(t, StateIdle, s.Status().State)
}

func TestScheduler_Trigger(t *testing.T) {
	r := &fakeRunner{release: make(chan struct{})}
	s := New(r)

	require.NoError(t, s.Trigger())
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Trigger(), ErrRunInProgress)

	close(r.release)
	require.Eventually(t, func() bool { return !s.Status().Scanning }, time.Second, time.Millisecond)
	assert.Equal(t, "run-manual", s.Status().LastRunID)
}
