package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanceworks/autobid-cli/internal/pipeline"
)

// fakeRunner counts cycles and optionally blocks until released.
type fakeRunner struct {
	runs  atomic.Int32
	block chan struct{} // when set, RunCycle waits for close
	err   error
}

func (f *fakeRunner) RunCycle(context.Context) (*pipeline.CycleStats, error) {
	f.runs.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.CycleStats{TotalNew: 2}, nil
}

func TestTickSingleFlight(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{block: make(chan struct{})}
	d := New(runner, time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.tick(context.Background())
	}()

	// Wait until the first cycle is in flight, then fire overlapping ticks.
	require.Eventually(t, func() bool {
		return runner.runs.Load() == 1
	}, time.Second, time.Millisecond)

	d.tick(context.Background())
	d.tick(context.Background())

	close(runner.block)
	wg.Wait()

	assert.EqualValues(t, 1, runner.runs.Load())
	status := d.Snapshot()
	assert.EqualValues(t, 2, status.Skipped)
	assert.EqualValues(t, 1, status.Completed)
	assert.False(t, status.Running)
}

func TestTickRecordsOutcome(t *testing.T) {
	t.Parallel()

	t.Run("successful cycle", func(t *testing.T) {
		t.Parallel()
		d := New(&fakeRunner{}, time.Minute)
		d.tick(context.Background())

		status := d.Snapshot()
		assert.EqualValues(t, 1, status.Completed)
		assert.Empty(t, status.LastError)
		require.NotNil(t, status.LastCycle)
		assert.Equal(t, 2, status.LastCycle.TotalNew)
	})

	t.Run("failed cycle keeps the error", func(t *testing.T) {
		t.Parallel()
		d := New(&fakeRunner{err: eris.New("browser gone")}, time.Minute)
		d.tick(context.Background())

		status := d.Snapshot()
		assert.EqualValues(t, 1, status.Completed)
		assert.Contains(t, status.LastError, "browser gone")
	})

	t.Run("next success clears the error", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{err: eris.New("browser gone")}
		d := New(runner, time.Minute)
		d.tick(context.Background())
		runner.err = nil
		d.tick(context.Background())

		status := d.Snapshot()
		assert.EqualValues(t, 2, status.Completed)
		assert.Empty(t, status.LastError)
	})
}

func TestMaxRuntimeEndsWait(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	d := New(runner, time.Hour, WithMaxRuntime(50*time.Millisecond))
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	done := make(chan struct{})
	go func() {
		d.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the maximum runtime elapsed")
	}
	// Only the immediate startup cycle ran within the bounded lifetime.
	assert.EqualValues(t, 1, runner.runs.Load())
}

func TestWaitReturnsOnSignalContext(t *testing.T) {
	t.Parallel()

	d := New(&fakeRunner{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Wait(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

func TestStatusEndpoints(t *testing.T) {
	t.Parallel()

	d := New(&fakeRunner{}, 30*time.Second)
	d.tick(context.Background())

	s := NewStatusServer(d, "127.0.0.1:0")
	srv := httptest.NewServer(s.srv.Handler)
	defer srv.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var status Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.EqualValues(t, 1, status.Completed)
		assert.EqualValues(t, 30, status.IntervalSecs)
		require.NotNil(t, status.LastCycle)
		assert.Equal(t, 2, status.LastCycle.TotalNew)
	})
}
