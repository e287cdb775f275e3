package occupancy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatwatch/internal/database"
	"github.com/iliyamo/seatwatch/internal/model"
	q "github.com/iliyamo/seatwatch/internal/queue"
	"github.com/iliyamo/seatwatch/internal/repository"
	"github.com/iliyamo/seatwatch/internal/video"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type rolloverSpy struct {
	calls int
	err   error
}

func (r *rolloverSpy) PerformRolloversIfNeeded(context.Context, time.Time) error {
	r.calls++
	return r.err
}

type notifierSpy struct{ events []q.SeatSystemReportedEvent }

func (n *notifierSpy) PublishSystemReported(_ context.Context, ev q.SeatSystemReportedEvent) error {
	n.events = append(n.events, ev)
	return errors.New("broker down")
}

type harness struct {
	engine   *Engine
	seats    *repository.SeatRepo
	sampler  *fakeSampler
	det      *scriptDetector
	clock    *clock
	rollover *rolloverSpy
	notifier *notifierSpy
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := database.NewTestDB(t)
	h := &harness{
		seats:    repository.NewSeatRepo(db),
		sampler:  &fakeSampler{n: 10},
		det:      &scriptDetector{},
		clock:    &clock{t: time.Unix(1_700_000_000, 0)},
		rollover: &rolloverSpy{},
		notifier: &notifierSpy{},
	}
	agg := NewAggregator(h.sampler, h.det, testLabels, 5*time.Second, zerolog.Nop())
	h.engine = NewEngine(db, h.seats, agg, zerolog.Nop(),
		WithClock(h.clock.now), WithRollovers(h.rollover), WithNotifier(h.notifier))
	return h
}

func (h *harness) refresh(t *testing.T) []model.Seat {
	t.Helper()
	seats, err := h.engine.RefreshFloor(context.Background(), testFloor())
	require.NoError(t, err)
	return seats
}

func (h *harness) seat(t *testing.T, id string) *model.Seat {
	t.Helper()
	s, err := h.seats.Get(context.Background(), "F1", id)
	require.NoError(t, err)
	return s
}

func TestRefreshCreatesSeatsAndCommits(t *testing.T) {
	h := newHarness(t)
	h.det.set(box("person", 5, 5))

	seats := h.refresh(t)
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].SeatID)
	assert.False(t, seats[0].IsEmpty)
	assert.True(t, seats[1].IsEmpty)
	assert.Equal(t, 1, h.rollover.calls)

	a1 := h.seat(t, "A1")
	assert.False(t, a1.IsEmpty)
	assert.True(t, a1.HasPower)
	assert.Equal(t, h.clock.t.Unix(), a1.LastUpdateTS)
	assert.Zero(t, a1.ChangeCount, "first observation is not a change")
}

func TestRefreshAccruesEmptyTimeAcrossCycles(t *testing.T) {
	h := newHarness(t)
	h.refresh(t)

	h.clock.advance(5 * time.Second)
	h.det.set(box("person", 25, 5))
	h.refresh(t)

	h.clock.advance(5 * time.Second)
	h.refresh(t)

	a1, a2 := h.seat(t, "A1"), h.seat(t, "A2")
	assert.Equal(t, int64(10), a1.DailyEmptySeconds)
	assert.Equal(t, int64(10), a1.TotalEmptySeconds)
	assert.Zero(t, a1.ChangeCount)
	assert.Equal(t, int64(5), a2.DailyEmptySeconds, "only the empty interval before the person arrived")
	assert.Equal(t, int64(1), a2.ChangeCount)
	assert.False(t, a2.IsEmpty)
}

func TestRefreshLockedSeatKeepsDisplayedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.refresh(t)
	require.NoError(t, h.seats.Lock(ctx, "F1", "A1", h.clock.t.Add(time.Minute).Unix()))

	h.det.set(box("person", 5, 5))
	for i := 0; i < 3; i++ {
		h.clock.advance(5 * time.Second)
		h.refresh(t)
	}
	a1 := h.seat(t, "A1")
	assert.True(t, a1.IsEmpty)
	assert.Equal(t, int64(1), a1.ChangeCount)
	assert.Equal(t, int64(5), a1.DailyEmptySeconds)

	require.NoError(t, h.seats.Lock(ctx, "F1", "A1", h.clock.t.Unix()))
	h.clock.advance(time.Second)
	h.refresh(t)
	assert.False(t, h.seat(t, "A1").IsEmpty, "zero-minute lock lets the next refresh commit")
}

func TestRefreshPromotesMaliciousAndSweepEscalates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.det.set(box("backpack", 5, 5))
	h.refresh(t)
	start := h.clock.t.Unix()

	h.clock.advance(time.Duration(MaliciousAfter-1) * time.Second)
	h.refresh(t)
	assert.False(t, h.seat(t, "A1").Flags.Malicious)

	n, err := h.engine.SweepAlarms(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep ignores seats that are not malicious")

	h.clock.advance(time.Second)
	h.refresh(t)
	a1 := h.seat(t, "A1")
	assert.True(t, a1.Flags.Malicious)
	assert.False(t, a1.Flags.SystemReported)
	assert.Equal(t, start, a1.OccupancyStartTS)

	n, err = h.engine.SweepAlarms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.seat(t, "A1").Flags.SystemReported)
	require.Len(t, h.notifier.events, 1, "publish failures are logged, not returned")
	assert.Equal(t, "A1", h.notifier.events[0].SeatID)
	assert.Equal(t, MaliciousAfter, h.notifier.events[0].UnattendedFor)

	n, err = h.engine.SweepAlarms(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.notifier.events, 1)
}

func TestRefreshPersonBreaksStreak(t *testing.T) {
	h := newHarness(t)
	h.det.set(box("backpack", 5, 5))
	h.refresh(t)

	h.clock.advance(time.Hour)
	h.det.set(box("backpack", 5, 5), box("person", 4, 4))
	h.refresh(t)
	assert.Zero(t, h.seat(t, "A1").OccupancyStartTS)

	h.clock.advance(time.Hour)
	h.det.set(box("backpack", 5, 5))
	h.refresh(t)
	assert.False(t, h.seat(t, "A1").Flags.Malicious)
}

func TestRefreshStreamUnavailableRecordsStatisticsOnly(t *testing.T) {
	h := newHarness(t)
	h.det.set(box("backpack", 5, 5))
	h.refresh(t)

	h.sampler.err = video.ErrStreamUnavailable
	h.clock.advance(10 * time.Second)
	seats := h.refresh(t)
	require.Len(t, seats, 2)

	a1 := h.seat(t, "A1")
	assert.False(t, a1.IsEmpty, "displayed state untouched")
	assert.True(t, a1.LastStateIsEmpty)
	assert.Equal(t, int64(1), a1.ChangeCount)
	assert.NotZero(t, a1.OccupancyStartTS)
	assert.Equal(t, int64(10), h.seat(t, "A2").DailyEmptySeconds)
}

func TestRefreshRolloverFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	h.rollover.err = errors.New("export failed")
	seats := h.refresh(t)
	assert.Len(t, seats, 2)
}

func TestRefreshRollsBackOnStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.refresh(t)
	before := h.clock.t.Unix()

	h.clock.advance(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.RefreshFloor(ctx, testFloor())
	assert.Error(t, err)
	assert.Equal(t, before, h.seat(t, "A1").LastUpdateTS)
}

func TestConfirmAfterPromotionEvictsAndRestartsStreak(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.det.set(box("backpack", 5, 5))
	h.refresh(t)
	h.clock.advance(time.Duration(MaliciousAfter) * time.Second)
	h.refresh(t)
	require.True(t, h.seat(t, "A1").Flags.Malicious)

	require.NoError(t, h.seats.Confirm(ctx, "F1", "A1"))
	a1 := h.seat(t, "A1")
	assert.True(t, a1.IsEmpty)
	assert.False(t, a1.Flags.Anomalous())

	h.clock.advance(5 * time.Second)
	h.refresh(t)
	a1 = h.seat(t, "A1")
	assert.False(t, a1.Flags.Malicious, "a new streak starts after confirm")
	assert.Equal(t, h.clock.t.Unix(), a1.OccupancyStartTS)
}

// gateSampler holds every Sample call until release is closed and records
// how many calls were in flight at once.
type gateSampler struct {
	n        int
	entered  chan struct{}
	release  chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *gateSampler) Sample(string, string, time.Duration) ([]video.Frame, error) {
	cur := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	frames := make([]video.Frame, s.n)
	for i := range frames {
		frames[i] = testFrame{idx: i, closed: new(int)}
	}
	return frames, nil
}

func TestConcurrentRefreshesCreditIntervalOnce(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	seats := repository.NewSeatRepo(db)
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	sampler := &gateSampler{n: 4, entered: make(chan struct{}, 1), release: make(chan struct{})}
	agg := NewAggregator(sampler, &scriptDetector{}, testLabels, time.Second, zerolog.Nop())
	engine := NewEngine(db, seats, agg, zerolog.Nop(), WithClock(clk.now))

	close(sampler.release)
	_, err := engine.RefreshFloor(ctx, testFloor())
	require.NoError(t, err)

	sampler.entered = make(chan struct{}, 1)
	sampler.release = make(chan struct{})
	clk.advance(5 * time.Second)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.RefreshFloor(ctx, testFloor())
		}(i)
	}
	<-sampler.entered
	assert.Never(t, func() bool { return sampler.inflight.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
	close(sampler.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), sampler.peak.Load(), "same-floor refreshes never overlap")
	for _, id := range []string{"A1", "A2"} {
		s, err := seats.Get(ctx, "F1", id)
		require.NoError(t, err)
		assert.Equal(t, int64(5), s.DailyEmptySeconds, id)
		assert.Equal(t, int64(5), s.TotalEmptySeconds, id)
		assert.Equal(t, clk.t.Unix(), s.LastUpdateTS, id)
	}
}
