package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conorfennell/studydeck/internal/cards"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/review"
	"github.com/conorfennell/studydeck/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store *cards.Store
	sched *review.Scheduler
	agg   *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(storage.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return t0 }
	return &fixture{
		store: cards.NewStore(db, nil, cards.WithClock(clock)),
		sched: review.NewScheduler(db, nil, nil, review.WithClock(clock)),
		agg:   NewAggregator(db, DefaultConfig(), nil),
	}
}

func (f *fixture) card(t *testing.T, user, subject string) domain.Flashcard {
	t.Helper()
	c, err := f.store.Create(context.Background(), user, subject, "q", "a")
	require.NoError(t, err)
	return c
}

func (f *fixture) grade(t *testing.T, c domain.Flashcard, r domain.Rating, at time.Time) {
	t.Helper()
	_, err := f.sched.GradeAt(context.Background(), c.UserID, c.ID, r, at)
	require.NoError(t, err)
}

func TestOverallProgressWithoutCards(t *testing.T) {
	f := newFixture(t)

	got, err := f.agg.OverallProgress(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, 0.0, got)
}

func TestOverallProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mastered := f.card(t, "alice", "Bio")
	f.card(t, "alice", "Bio")
	f.card(t, "alice", "Chem")
	learning := f.card(t, "alice", "Chem")
	f.card(t, "bob", "Bio")

	for i := 0; i < 3; i++ {
		f.grade(t, mastered, domain.Good, t0.AddDate(0, 0, i*10))
	}
	f.grade(t, learning, domain.Good, t0)
	f.grade(t, learning, domain.Good, t0.AddDate(0, 0, 2))

	got, err := f.agg.OverallProgress(ctx, "alice")
	require.NoError(t, err)
	require.InDelta(t, 0.25, got, 1e-9)

	subjects, err := f.agg.SubjectProgress(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []SubjectStat{
		{Subject: "Bio", Total: 2, Mastered: 1, Progress: 0.5},
		{Subject: "Chem", Total: 2, Mastered: 0, Progress: 0},
	}, subjects)
}

func TestAgainResetsMastery(t *testing.T) {
	f := newFixture(t)
	c := f.card(t, "alice", "Bio")
	for i := 0; i < 3; i++ {
		f.grade(t, c, domain.Good, t0.AddDate(0, 0, i*10))
	}
	f.grade(t, c, domain.Again, t0.AddDate(0, 0, 40))

	got, err := f.agg.OverallProgress(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 0.0, got)
}

func TestStudyTimeAndReviews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.card(t, "alice", "Bio")

	f.grade(t, c, domain.Again, t0.Add(time.Hour))
	f.grade(t, c, domain.Again, t0.Add(2*time.Hour))
	f.grade(t, c, domain.Good, t0.Add(50*time.Hour))

	w := Window{From: t0, To: t0.Add(48 * time.Hour)}
	n, err := f.agg.CardsReviewed(ctx, "alice", w)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	d, err := f.agg.TotalStudyTime(ctx, "alice", w)
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)

	n, err = f.agg.CardsReviewed(ctx, "bob", w)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestWindowPrevious(t *testing.T) {
	w := Last(t0, 7*24*time.Hour)
	p := w.Previous()
	require.True(t, p.To.Equal(w.From))
	require.True(t, p.From.Equal(t0.Add(-14*24*time.Hour)))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	week := 7 * 24 * time.Hour
	now := t0.Add(30 * 24 * time.Hour)

	a := f.card(t, "alice", "Bio")
	f.card(t, "alice", "Chem")

	// Previous week: one review. This week: three, on three consecutive days
	// ending yesterday.
	f.grade(t, a, domain.Again, now.Add(-10*24*time.Hour))
	f.grade(t, a, domain.Again, now.Add(-3*24*time.Hour))
	f.grade(t, a, domain.Again, now.Add(-2*24*time.Hour))
	f.grade(t, a, domain.Again, now.Add(-24*time.Hour))

	d, err := f.agg.Dashboard(ctx, "alice", now, week)
	require.NoError(t, err)
	require.Equal(t, 3, d.CardsReviewed)
	require.Equal(t, 90*time.Second, d.StudyTime)
	require.Equal(t, 1, d.PreviousCardsReviewed)
	require.Equal(t, 30*time.Second, d.PreviousStudyTime)
	require.Equal(t, 2, d.TotalCards)
	require.Equal(t, 2, d.DueNow)
	require.Equal(t, 3, d.StreakDays)
	require.Len(t, d.Subjects, 2)

	_, err = f.agg.Dashboard(ctx, "alice", now, 0)
	require.Error(t, err)
}

func TestCalculateStreak(t *testing.T) {
	today := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		days []string
		want int
	}{
		{"none", nil, 0},
		{"today only", []string{"2025-06-15"}, 1},
		{"ending yesterday", []string{"2025-06-14", "2025-06-13"}, 2},
		{"gap before yesterday", []string{"2025-06-13"}, 0},
		{"broken run", []string{"2025-06-15", "2025-06-14", "2025-06-12"}, 2},
		{"across month", []string{"2025-06-01", "2025-05-31", "2025-06-02"}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			days := make(map[string]bool)
			for _, d := range tc.days {
				days[d] = true
			}
			if got := calculateStreak(days, today); got != tc.want {
				t.Errorf("Expected streak %d, but got %d", tc.want, got)
			}
		})
	}
}
