package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// ListEvents returns the user's review events with from <= reviewed_at < to,
// oldest first.
func (db *DB) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, user_id, reviewed_at, grade, resulting_interval
		FROM review_events
		WHERE user_id = ? AND reviewed_at >= ? AND reviewed_at < ?
		ORDER BY reviewed_at ASC, id ASC
	`, userID, toNanos(from), toNanos(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list review events for user %s: %w", userID, err)
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		var (
			e          domain.ReviewEvent
			reviewedAt int64
			grade      int
		)
		if err := rows.Scan(&e.ID, &e.CardID, &e.UserID, &reviewedAt, &grade, &e.ResultingInterval); err != nil {
			return nil, fmt.Errorf("failed to scan review event row: %w", err)
		}
		e.Timestamp = fromNanos(reviewedAt)
		e.Grade = domain.Rating(grade)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review events: %w", err)
	}
	return events, nil
}

// CountEvents counts the user's review events with from <= reviewed_at < to.
func (db *DB) CountEvents(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_events
		WHERE user_id = ? AND reviewed_at >= ? AND reviewed_at < ?
	`, userID, toNanos(from), toNanos(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count review events for user %s: %w", userID, err)
	}
	return n, nil
}

// ListCardEvents returns the review history of one card, oldest first.
func (db *DB) ListCardEvents(ctx context.Context, userID, cardID string) ([]domain.ReviewEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, user_id, reviewed_at, grade, resulting_interval
		FROM review_events
		WHERE user_id = ? AND card_id = ?
		ORDER BY reviewed_at ASC, id ASC
	`, userID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review events for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var events []domain.ReviewEvent
	for rows.Next() {
		var (
			e          domain.ReviewEvent
			reviewedAt int64
			grade      int
		)
		if err := rows.Scan(&e.ID, &e.CardID, &e.UserID, &reviewedAt, &grade, &e.ResultingInterval); err != nil {
			return nil, fmt.Errorf("failed to scan review event row: %w", err)
		}
		e.Timestamp = fromNanos(reviewedAt)
		e.Grade = domain.Rating(grade)
		events = append(events, e)
	}
	return events, rows.Err()
}
