package availability

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medspa-booking-flow/internal/observability/metrics"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

type lookupCall struct {
	serviceID, start, end, tz string
}

// gatedBackend blocks each lookup until the test releases it.
type gatedBackend struct {
	mu      sync.Mutex
	calls   []lookupCall
	gates   map[string]chan struct{}
	results map[string][]Day
	errs    map[string]error
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		gates:   make(map[string]chan struct{}),
		results: make(map[string][]Day),
		errs:    make(map[string]error),
	}
}

func (b *gatedBackend) gate(start string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.gates[start]
	if !ok {
		g = make(chan struct{})
		b.gates[start] = g
	}
	return g
}

func (b *gatedBackend) GetAvailability(ctx context.Context, serviceID, start, end, tz string) ([]Day, error) {
	b.mu.Lock()
	b.calls = append(b.calls, lookupCall{serviceID, start, end, tz})
	b.mu.Unlock()
	<-b.gate(start)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results[start], b.errs[start]
}

func (b *gatedBackend) Calls() []lookupCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]lookupCall(nil), b.calls...)
}

type instantBackend struct {
	days []Day
	err  error
	mu   sync.Mutex
	n    int
}

func (b *instantBackend) GetAvailability(context.Context, string, string, string, string) ([]Day, error) {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
	return b.days, b.err
}

func newCoordinator(t *testing.T, backend Backend) *Coordinator {
	t.Helper()
	return NewCoordinator(backend, nil, metrics.NewFlowMetrics(prometheus.NewRegistry()), logging.New("error"))
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for availability result")
		return Result{}
	}
}

func TestRefresh_SuccessDeliversExactlyOnce(t *testing.T) {
	backend := &instantBackend{days: []Day{{Date: "2024-01-05", Slots: []json.RawMessage{json.RawMessage(`"09:00"`)}}}}
	c := newCoordinator(t, backend)

	results := make(chan Result, 4)
	epoch, ok := c.Refresh(context.Background(), "svc_42", MonthAnchor(2024, 0, time.UTC), "UTC", func(r Result) { results <- r })
	require.True(t, ok)

	r := waitResult(t, results)
	assert.Equal(t, epoch, r.Epoch)
	assert.Nil(t, r.Err)
	require.Len(t, r.Days, 1)
	assert.Equal(t, "2024-01-05", r.Days[0].Date)
	assert.Equal(t, "UTC", r.TimeZone)

	select {
	case extra := <-results:
		t.Fatalf("unexpected second delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRefresh_ErrorDeliversFetchError(t *testing.T) {
	c := newCoordinator(t, &instantBackend{err: errors.New("backend exploded")})

	results := make(chan Result, 1)
	_, ok := c.Refresh(context.Background(), "svc_42", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), "UTC", func(r Result) { results <- r })
	require.True(t, ok)

	r := waitResult(t, results)
	require.NotNil(t, r.Err)
	assert.Nil(t, r.Days)
	assert.Equal(t, "backend exploded", r.Err.Message)
}

func TestRefresh_NilDaysBecomeEmpty(t *testing.T) {
	c := newCoordinator(t, &instantBackend{})

	results := make(chan Result, 1)
	c.Refresh(context.Background(), "svc", time.Now(), "UTC", func(r Result) { results <- r })

	r := waitResult(t, results)
	assert.Nil(t, r.Err)
	assert.NotNil(t, r.Days)
	assert.Empty(t, r.Days)
}

func TestRefresh_MissingServiceIDIssuesNothing(t *testing.T) {
	backend := &instantBackend{}
	c := newCoordinator(t, backend)

	_, ok := c.Refresh(context.Background(), "", time.Now(), "UTC", func(Result) {
		t.Fatal("deliver must not be called")
	})
	assert.False(t, ok)
	assert.Equal(t, uint64(0), c.Latest())
	time.Sleep(20 * time.Millisecond)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 0, backend.n)
}

func TestRefresh_RangesForConsecutiveMonths(t *testing.T) {
	backend := newGatedBackend()
	c := newCoordinator(t, backend)
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	results := make(chan Result, 2)
	c.Refresh(context.Background(), "svc_42", MonthAnchor(2024, 0, loc), "America/Chicago", func(r Result) { results <- r })
	close(backend.gate("2024-01-01T00:00:00-06:00"))
	first := waitResult(t, results)

	c.Refresh(context.Background(), "svc_42", MonthAnchor(2024, 2, loc), "America/Chicago", func(r Result) { results <- r })
	close(backend.gate("2024-03-01T00:00:00-06:00"))
	second := waitResult(t, results)

	assert.Equal(t, "2024-01-01T00:00:00-06:00", first.Range.StartISO())
	assert.Equal(t, "2024-02-01T00:00:00-06:00", first.Range.EndISO())
	assert.Equal(t, "2024-03-01T00:00:00-06:00", second.Range.StartISO())
	assert.Equal(t, "2024-04-01T00:00:00-05:00", second.Range.EndISO())

	calls := backend.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, lookupCall{"svc_42", "2024-01-01T00:00:00-06:00", "2024-02-01T00:00:00-06:00", "America/Chicago"}, calls[0])
}

func TestRefresh_StaleResponseIsDiscarded(t *testing.T) {
	backend := newGatedBackend()
	jan := "2024-01-01T00:00:00Z"
	mar := "2024-03-01T00:00:00Z"
	backend.results[jan] = []Day{{Date: "2024-01-02"}}
	backend.results[mar] = []Day{{Date: "2024-03-04"}}

	reg := prometheus.NewRegistry()
	m := metrics.NewFlowMetrics(reg)
	c := NewCoordinator(backend, nil, m, logging.New("error"))

	results := make(chan Result, 2)
	deliver := func(r Result) { results <- r }
	c.Refresh(context.Background(), "svc_42", MonthAnchor(2024, 0, time.UTC), "UTC", deliver)
	c.Refresh(context.Background(), "svc_42", MonthAnchor(2024, 2, time.UTC), "UTC", deliver)

	// The newer month answers first, then the older one.
	close(backend.gate(mar))
	latest := waitResult(t, results)
	assert.Equal(t, "2024-03-04", latest.Days[0].Date)

	close(backend.gate(jan))
	select {
	case stale := <-results:
		t.Fatalf("stale result delivered: %+v", stale)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, uint64(2), c.Latest())
}

func TestMonthRange(t *testing.T) {
	rng := MonthRange(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "2024-12-01T00:00:00Z", rng.StartISO())
	assert.Equal(t, "2025-01-01T00:00:00Z", rng.EndISO())
	assert.True(t, rng.Contains(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, rng.Contains(rng.End))
}

func TestMonthAnchorRollsOver(t *testing.T) {
	anchor := MonthAnchor(2024, 12, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), anchor)

	anchor = MonthAnchor(2024, -1, time.UTC)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), anchor)
}

func TestFetchErrorFormatting(t *testing.T) {
	plain := &FetchError{Message: "boom", Err: errors.New("boom")}
	assert.Equal(t, "availability: boom", plain.Error())

	wrapped := &FetchError{Message: "availability service unreachable", Err: context.DeadlineExceeded}
	assert.Contains(t, wrapped.Error(), "deadline exceeded")
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
}
