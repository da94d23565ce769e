package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	store   *cards.Store
	planner *Planner
	clock   *fakeClock
	ids     []string
}

// newFixture creates n cards for alice, one minute apart, so their due
// order matches their creation order.
func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	db, err := storage.Open(storage.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: t0}
	seq := 0
	store := cards.NewStore(db, nil,
		cards.WithClock(clock.Now),
		cards.WithIDGenerator(func() string { seq++; return fmt.Sprintf("card-%02d", seq) }),
	)
	sched := review.NewScheduler(db, nil, nil, review.WithClock(clock.Now))

	f := &fixture{store: store, clock: clock}
	for i := 0; i < n; i++ {
		card, err := store.Create(context.Background(), "alice", "Bio", fmt.Sprintf("q%d", i), "a")
		require.NoError(t, err)
		f.ids = append(f.ids, card.ID)
		clock.now = clock.now.Add(time.Minute)
	}
	clock.now = t0.Add(time.Hour)
	f.planner = NewPlanner(store, sched, DefaultConfig(), nil, WithClock(clock.Now))
	return f
}

func TestPlanTakesEarliestDueCards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"card-01", "card-02"}, s.CardIDs)
	require.Equal(t, Planned, s.State())
	require.Equal(t, 15*time.Minute, s.Budget, "zero budget should fall back to the default")
	require.NotEmpty(t, s.ID)
}

func TestPlanDefaultsMaxCards(t *testing.T) {
	f := newFixture(t, 25)

	s, err := f.planner.Plan(context.Background(), "alice", f.clock.Now(), time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, s.CardIDs, 20)
}

func TestPlanEmpty(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.planner.Plan(context.Background(), "alice", f.clock.Now(), 0, 0)
	require.True(t, errors.Is(err, domain.ErrEmptySession), "got %v", err)
}

func TestPlanIgnoresOtherUsers(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.planner.Plan(context.Background(), "bob", f.clock.Now(), 0, 0)
	require.True(t, errors.Is(err, domain.ErrEmptySession))
}

func TestNextRequiresGrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 2)
	require.NoError(t, err)

	card, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "card-01", card.ID)
	require.Equal(t, InProgress, s.State())

	_, _, err = s.Next(ctx)
	require.True(t, errors.Is(err, domain.ErrUngradedCard), "got %v", err)
	require.True(t, domain.IsSessionProtocol(err))

	_, err = s.RecordAnswer(ctx, domain.Good)
	require.NoError(t, err)

	card, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "card-02", card.ID)
}

func TestRunToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, ok, err := s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		state, err := s.RecordAnswer(ctx, domain.Good)
		require.NoError(t, err)
		require.Equal(t, 1, state.Repetitions)
	}

	_, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Complete, s.State())

	snap := s.Snapshot()
	require.Equal(t, 2, snap.Answered)
	require.Equal(t, 0, snap.Remaining)

	_, _, err = s.Next(ctx)
	require.True(t, errors.Is(err, domain.ErrSessionAlreadyComplete))
	_, err = s.RecordAnswer(ctx, domain.Good)
	require.True(t, errors.Is(err, domain.ErrSessionAlreadyComplete))

	due, err := f.store.ListDue(ctx, "alice", f.clock.Now())
	require.NoError(t, err)
	require.Empty(t, due, "graded cards should no longer be due")
}

func TestRecordAnswerProtocol(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 0)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, domain.Good)
	require.True(t, errors.Is(err, domain.ErrNoCurrentCard), "got %v", err)

	_, _, err = s.Next(ctx)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, domain.Rating(9))
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = s.RecordAnswer(ctx, domain.Again)
	require.NoError(t, err)

	_, err = s.RecordAnswer(ctx, domain.Good)
	require.True(t, errors.Is(err, domain.ErrAlreadyGraded), "got %v", err)
}

func TestBudgetEndsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 5*time.Minute, 0)
	require.NoError(t, err)

	_, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.RecordAnswer(ctx, domain.Good)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(5 * time.Minute)

	_, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Complete, s.State())
}

func TestNextSkipsDeletedCards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, "alice", "card-01"))

	card, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "card-02", card.ID)
}

func TestPresentedCardDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 0)
	require.NoError(t, err)

	card, _, err := s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "card-01", card.ID)
	require.NoError(t, f.store.Delete(ctx, "alice", card.ID))

	_, err = s.RecordAnswer(ctx, domain.Good)
	require.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	card, ok, err := s.Next(ctx)
	require.NoError(t, err, "the session must not stay stuck on a deleted card")
	require.True(t, ok)
	require.Equal(t, "card-02", card.ID)
	require.Equal(t, 0, s.Snapshot().Answered)

	_, err = s.RecordAnswer(ctx, domain.Good)
	require.NoError(t, err)
	_, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, Complete, s.State())
}

func TestOverlappingCallsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)

	s, err := f.planner.Plan(ctx, "alice", f.clock.Now(), 0, 0)
	require.NoError(t, err)

	s.busy.Lock()
	_, _, err = s.Next(ctx)
	require.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
	_, err = s.RecordAnswer(ctx, domain.Good)
	require.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
	s.busy.Unlock()

	_, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	m := NewManager(f.planner)

	s, err := m.Start(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	got, err := m.Get("alice", s.ID)
	require.NoError(t, err)
	require.Same(t, s, got)

	_, err = m.Get("bob", s.ID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
	require.True(t, errors.Is(m.Abandon("bob", s.ID), domain.ErrNotFound))

	require.NoError(t, m.Abandon("alice", s.ID))
	require.Equal(t, 0, m.Len())
	_, err = m.Get("alice", s.ID)
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestManagerSweepsStaleSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	m := NewManager(f.planner)

	_, err := m.Start(ctx, "alice", time.Minute, 0)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(2 * time.Hour)
	_, err = m.Start(ctx, "alice", time.Minute, 0)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
}
