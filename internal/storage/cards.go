package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

const cardColumns = `id, user_id, subject, question, answer, source_hash, created_at,
	ease_factor, interval_days, repetitions, due_at, last_reviewed_at, version`

func scanCard(row rowScanner) (domain.Flashcard, error) {
	var (
		c          domain.Flashcard
		createdAt  int64
		dueAt      int64
		lastReview sql.NullInt64 // Use NullInt64 for nullable last_reviewed_at
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Subject,
		&c.Question,
		&c.Answer,
		&c.SourceHash,
		&createdAt,
		&c.Review.EaseFactor,
		&c.Review.IntervalDays,
		&c.Review.Repetitions,
		&dueAt,
		&lastReview,
		&c.Review.Version,
	)
	if err != nil {
		return domain.Flashcard{}, err
	}
	c.CreatedAt = fromNanos(createdAt)
	c.Review.DueAt = fromNanos(dueAt)
	if lastReview.Valid {
		t := fromNanos(lastReview.Int64)
		c.Review.LastReviewedAt = &t
	}
	return c, nil
}

// InsertCards inserts all cards in a single transaction: either every card is
// stored or none is.
func (db *DB) InsertCards(ctx context.Context, cards []domain.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cards (`+cardColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare card insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range cards {
			_, err := stmt.ExecContext(ctx,
				c.ID,
				c.UserID,
				c.Subject,
				c.Question,
				c.Answer,
				c.SourceHash,
				toNanos(c.CreatedAt),
				c.Review.EaseFactor,
				c.Review.IntervalDays,
				c.Review.Repetitions,
				toNanos(c.Review.DueAt),
				nullNanos(c.Review.LastReviewedAt),
				c.Review.Version,
			)
			if err != nil {
				return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// InsertCard inserts a single card.
func (db *DB) InsertCard(ctx context.Context, card domain.Flashcard) error {
	return db.InsertCards(ctx, []domain.Flashcard{card})
}

// FindCard retrieves a card owned by userID. A card owned by someone else is
// reported exactly like a missing one.
func (db *DB) FindCard(ctx context.Context, userID, cardID string) (domain.Flashcard, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE id = ? AND user_id = ?
	`, cardID, userID)

	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Flashcard{}, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
		}
		return domain.Flashcard{}, fmt.Errorf("failed to find card %s: %w", cardID, err)
	}
	return c, nil
}

// UpdateCardContent writes the owner-editable fields of a card.
// Review state columns are never touched here.
func (db *DB) UpdateCardContent(ctx context.Context, c domain.Flashcard) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET subject = ?, question = ?, answer = ?
		WHERE id = ? AND user_id = ?
	`,
		c.Subject,
		c.Question,
		c.Answer,
		c.ID,
		c.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteCard removes a card and its review history. Deleting a card that does
// not exist is not an error.
func (db *DB) DeleteCard(ctx context.Context, userID, cardID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM review_events
			WHERE card_id = ? AND user_id = ?
		`, cardID, userID); err != nil {
			return fmt.Errorf("failed to delete review events for card %s: %w", cardID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cards
			WHERE id = ? AND user_id = ?
		`, cardID, userID); err != nil {
			return fmt.Errorf("failed to delete card %s: %w", cardID, err)
		}
		return nil
	})
}

// ListDueCards returns the user's cards with due_at <= asOf, most overdue first
// and oldest first among equals. A limit <= 0 returns every due card.
func (db *DB) ListDueCards(ctx context.Context, userID string, asOf time.Time, limit int) ([]domain.Flashcard, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE user_id = ? AND due_at <= ?
		ORDER BY due_at ASC, created_at ASC, id ASC
	`
	args := []any{userID, toNanos(asOf)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryCards(ctx, query, args...)
}

// ListCards returns all of a user's cards in creation order, optionally
// restricted to one subject.
func (db *DB) ListCards(ctx context.Context, userID, subject string) ([]domain.Flashcard, error) {
	if subject == "" {
		return db.queryCards(ctx, `
			SELECT `+cardColumns+`
			FROM cards WHERE user_id = ?
			ORDER BY created_at ASC, id ASC
		`, userID)
	}
	return db.queryCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards WHERE user_id = ? AND subject = ?
		ORDER BY created_at ASC, id ASC
	`, userID, subject)
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Flashcard, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card rows: %w", err)
	}
	return cards, nil
}

// ApplyReview stores the new review state of card and appends event, both in
// one transaction. The update only succeeds if the stored row still carries
// card.Review.Version; otherwise ErrConcurrencyConflict is returned and
// nothing is written.
func (db *DB) ApplyReview(ctx context.Context, card domain.Flashcard, next domain.ReviewState, event domain.ReviewEvent) (domain.ReviewState, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE cards
			SET ease_factor = ?, interval_days = ?, repetitions = ?, due_at = ?, last_reviewed_at = ?, version = version + 1
			WHERE id = ? AND user_id = ? AND version = ?
		`,
			next.EaseFactor,
			next.IntervalDays,
			next.Repetitions,
			toNanos(next.DueAt),
			nullNanos(next.LastReviewedAt),
			card.ID,
			card.UserID,
			card.Review.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update review state for card %s: %w", card.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows for card %s: %w", card.ID, err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE id = ? AND user_id = ?`, card.ID, card.UserID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check card %s: %w", card.ID, err)
			}
			if exists == 0 {
				return fmt.Errorf("card %s: %w", card.ID, domain.ErrNotFound)
			}
			return fmt.Errorf("card %s at version %d: %w", card.ID, card.Review.Version, domain.ErrConcurrencyConflict)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO review_events (card_id, user_id, reviewed_at, grade, resulting_interval)
			VALUES (?, ?, ?, ?, ?)
		`,
			event.CardID,
			event.UserID,
			toNanos(event.Timestamp),
			int(event.Grade),
			event.ResultingInterval,
		); err != nil {
			return fmt.Errorf("failed to append review event for card %s: %w", card.ID, err)
		}
		return nil
	})
	if err != nil {
		return domain.ReviewState{}, err
	}
	next.Version = card.Review.Version + 1
	return next, nil
}

// CardCounts holds aggregate card counts for one user or one subject.
type CardCounts struct {
	Subject  string
	Total    int
	Mastered int
}

// CountCards counts a user's cards and how many have at least masteryThreshold
// consecutive successful reviews.
func (db *DB) CountCards(ctx context.Context, userID string, masteryThreshold int) (CardCounts, error) {
	var c CardCounts
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN repetitions >= ? THEN 1 ELSE 0 END), 0)
		FROM cards WHERE user_id = ?
	`, masteryThreshold, userID).Scan(&c.Total, &c.Mastered)
	if err != nil {
		return CardCounts{}, fmt.Errorf("failed to count cards for user %s: %w", userID, err)
	}
	return c, nil
}

// CountCardsBySubject is CountCards grouped by subject, ordered by subject.
func (db *DB) CountCardsBySubject(ctx context.Context, userID string, masteryThreshold int) ([]CardCounts, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT subject, COUNT(*), COALESCE(SUM(CASE WHEN repetitions >= ? THEN 1 ELSE 0 END), 0)
		FROM cards WHERE user_id = ?
		GROUP BY subject
		ORDER BY subject ASC
	`, masteryThreshold, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count cards by subject for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []CardCounts
	for rows.Next() {
		var c CardCounts
		if err := rows.Scan(&c.Subject, &c.Total, &c.Mastered); err != nil {
			return nil, fmt.Errorf("failed to scan subject count row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountDueCards counts the user's cards due at asOf.
func (db *DB) CountDueCards(ctx context.Context, userID string, asOf time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards WHERE user_id = ? AND due_at <= ?
	`, userID, toNanos(asOf)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count due cards for user %s: %w", userID, err)
	}
	return n, nil
}

// SourceHashes returns the set of non-empty source hashes among the user's cards.
func (db *DB) SourceHashes(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT source_hash FROM cards
		WHERE user_id = ? AND source_hash != ''
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source hashes for user %s: %w", userID, err)
	}
	defer rows.Close()

	hashes := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan source hash: %w", err)
		}
		hashes[h] = true
	}
	return hashes, rows.Err()
}
