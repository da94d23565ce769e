// Package progress derives study statistics from cards and review history.
// Nothing here is stored; every figure is recomputed on each call.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studydeck/internal/storage"
)

// Config holds the constants the statistics are computed with.
type Config struct {
	// PerReview is the time one review is assumed to take; raw timings
	// are not recorded.
	PerReview time.Duration `koanf:"per_review" validate:"gt=0"`
	// Mastery is the number of consecutive successful reviews after which
	// a card counts as learned.
	Mastery int `koanf:"mastery" validate:"gt=0"`
}

// DefaultConfig returns 30 seconds per review and a mastery threshold of 3.
func DefaultConfig() Config {
	return Config{PerReview: 30 * time.Second, Mastery: 3}
}

// streakHorizon bounds how far back Dashboard looks when counting a streak.
const streakHorizon = 366

// Window is the half-open time range [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Last returns the window of length d ending at now.
func Last(now time.Time, d time.Duration) Window {
	return Window{From: now.Add(-d), To: now}
}

// Previous returns the window of the same length immediately before w.
func (w Window) Previous() Window {
	return Window{From: w.From.Add(-w.To.Sub(w.From)), To: w.From}
}

// SubjectStat is the progress of the cards sharing one subject.
type SubjectStat struct {
	Subject  string  `json:"subject"`
	Total    int     `json:"total"`
	Mastered int     `json:"mastered"`
	Progress float64 `json:"progress"`
}

// Dashboard is the summary shown on a user's home screen.
type Dashboard struct {
	Window                Window        `json:"window"`
	StudyTime             time.Duration `json:"study_time_ns"`
	CardsReviewed         int           `json:"cards_reviewed"`
	PreviousStudyTime     time.Duration `json:"previous_study_time_ns"`
	PreviousCardsReviewed int           `json:"previous_cards_reviewed"`
	OverallProgress       float64       `json:"overall_progress"`
	TotalCards            int           `json:"total_cards"`
	DueNow                int           `json:"due_now"`
	StreakDays            int           `json:"streak_days"`
	Subjects              []SubjectStat `json:"subjects"`
}

// Aggregator computes statistics for one user at a time.
type Aggregator struct {
	db     *storage.DB
	config Config
	logger *slog.Logger
}

// NewAggregator creates an aggregator over db.
func NewAggregator(db *storage.DB, config Config, logger *slog.Logger) *Aggregator {
	defaults := DefaultConfig()
	if config.PerReview <= 0 {
		config.PerReview = defaults.PerReview
	}
	if config.Mastery <= 0 {
		config.Mastery = defaults.Mastery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{db: db, config: config, logger: logger}
}

// TotalStudyTime estimates the time spent reviewing within w.
func (a *Aggregator) TotalStudyTime(ctx context.Context, userID string, w Window) (time.Duration, error) {
	n, err := a.CardsReviewed(ctx, userID, w)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * a.config.PerReview, nil
}

// CardsReviewed counts the reviews recorded within w.
func (a *Aggregator) CardsReviewed(ctx context.Context, userID string, w Window) (int, error) {
	return a.db.CountEvents(ctx, userID, w.From, w.To)
}

// OverallProgress is the fraction of the user's cards that are mastered, in
// [0, 1]. A user without cards has progress 0.
func (a *Aggregator) OverallProgress(ctx context.Context, userID string) (float64, error) {
	c, err := a.db.CountCards(ctx, userID, a.config.Mastery)
	if err != nil {
		return 0, err
	}
	return ratio(c.Mastered, c.Total), nil
}

// SubjectProgress applies the OverallProgress rule to each subject, ordered
// by subject name.
func (a *Aggregator) SubjectProgress(ctx context.Context, userID string) ([]SubjectStat, error) {
	counts, err := a.db.CountCardsBySubject(ctx, userID, a.config.Mastery)
	if err != nil {
		return nil, err
	}
	out := make([]SubjectStat, len(counts))
	for i, c := range counts {
		out[i] = SubjectStat{
			Subject:  c.Subject,
			Total:    c.Total,
			Mastered: c.Mastered,
			Progress: ratio(c.Mastered, c.Total),
		}
	}
	return out, nil
}

// Dashboard gathers every figure for the window of length window ending at
// now, alongside the figures of the window before it.
func (a *Aggregator) Dashboard(ctx context.Context, userID string, now time.Time, window time.Duration) (Dashboard, error) {
	if window <= 0 {
		return Dashboard{}, fmt.Errorf("invalid dashboard window %s", window)
	}
	d := Dashboard{Window: Last(now, window)}

	var (
		counts   storage.CardCounts
		subjects []SubjectStat
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.CardsReviewed, err = a.CardsReviewed(ctx, userID, d.Window)
		return err
	})
	g.Go(func() (err error) {
		d.PreviousCardsReviewed, err = a.CardsReviewed(ctx, userID, d.Window.Previous())
		return err
	})
	g.Go(func() (err error) {
		counts, err = a.db.CountCards(ctx, userID, a.config.Mastery)
		return err
	})
	g.Go(func() (err error) {
		subjects, err = a.SubjectProgress(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.DueNow, err = a.db.CountDueCards(ctx, userID, now)
		return err
	})
	g.Go(func() (err error) {
		d.StreakDays, err = a.streak(ctx, userID, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("failed to build dashboard for user %s: %w", userID, err)
	}

	d.StudyTime = time.Duration(d.CardsReviewed) * a.config.PerReview
	d.PreviousStudyTime = time.Duration(d.PreviousCardsReviewed) * a.config.PerReview
	d.TotalCards = counts.Total
	d.OverallProgress = ratio(counts.Mastered, counts.Total)
	d.Subjects = subjects
	if d.Subjects == nil {
		d.Subjects = []SubjectStat{}
	}

	a.logger.Debug("dashboard computed", "user_id", userID, "reviewed", d.CardsReviewed, "due", d.DueNow)
	return d, nil
}

// streak counts consecutive calendar days, in now's location, with at least
// one review. The run may end today or yesterday.
func (a *Aggregator) streak(ctx context.Context, userID string, now time.Time) (int, error) {
	events, err := a.db.ListEvents(ctx, userID, now.AddDate(0, 0, -streakHorizon), now.Add(time.Nanosecond))
	if err != nil {
		return 0, err
	}
	days := make(map[string]bool, len(events))
	for _, e := range events {
		days[dayKey(e.Timestamp.In(now.Location()))] = true
	}
	return calculateStreak(days, now), nil
}

func calculateStreak(days map[string]bool, today time.Time) int {
	check := today
	if !days[dayKey(check)] {
		check = check.AddDate(0, 0, -1)
		if !days[dayKey(check)] {
			return 0
		}
	}

	streak := 0
	for days[dayKey(check)] {
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
