package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkraev/venuetrace/internal/dbx"
	"github.com/mkraev/venuetrace/internal/models"
	"github.com/mkraev/venuetrace/internal/timex"
)

// SQLiteRepository implements Repository over the problematic_events and
// exposure_matches tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a SQLiteRepository bound to db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertBatch(ctx context.Context, batch []models.ProblematicEvent) error {
	if len(batch) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO problematic_events (event_id, venue_payload, start_at, end_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(event_id) DO UPDATE SET venue_payload = excluded.venue_payload,
					start_at = excluded.start_at,
					end_at = excluded.end_at`
		for _, ev := range batch {
			_, err := tx.ExecContext(ctx, query, ev.EventID, ev.VenuePayload, ev.Start.Unix(), ev.End.Unix())
			if err != nil {
				return fmt.Errorf("failed to upsert problematic event: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.ProblematicEvent, error) {
	query := `SELECT event_id, venue_payload, start_at, end_at FROM problematic_events ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select problematic events: %w", err)
	}
	defer rows.Close()

	var result []models.ProblematicEvent
	for rows.Next() {
		var (
			ev    models.ProblematicEvent
			start int64
			end   int64
		)
		if err := rows.Scan(&ev.EventID, &ev.VenuePayload, &start, &end); err != nil {
			return nil, err
		}
		ev.Start = time.Unix(start, 0).UTC()
		ev.End = time.Unix(end, 0).UTC()
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, now time.Time, daysToKeep int) error {
	if daysToKeep <= 0 {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM problematic_events`); err != nil {
			return fmt.Errorf("failed to wipe problematic events: %w", err)
		}
		return nil
	}

	cutoff := timex.DayCutoff(now, daysToKeep)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM problematic_events WHERE end_at < ?`, cutoff.Unix()); err != nil {
		return fmt.Errorf("failed to prune problematic events: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceMatches(ctx context.Context, matches []models.ExposureEvent) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM exposure_matches`); err != nil {
			return fmt.Errorf("failed to clear exposure matches: %w", err)
		}
		query := `INSERT INTO exposure_matches (checkin_id, matched_event_id) VALUES (?, ?)
				ON CONFLICT(checkin_id, matched_event_id) DO NOTHING`
		for _, m := range matches {
			if _, err := tx.ExecContext(ctx, query, m.CheckinID, m.MatchedEventID); err != nil {
				return fmt.Errorf("failed to insert exposure match: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Matches(ctx context.Context) ([]models.ExposureEvent, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT checkin_id, matched_event_id FROM exposure_matches`)
	if err != nil {
		return nil, fmt.Errorf("failed to select exposure matches: %w", err)
	}
	defer rows.Close()

	var result []models.ExposureEvent
	for rows.Next() {
		var m models.ExposureEvent
		if err := rows.Scan(&m.CheckinID, &m.MatchedEventID); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) RemoveMatchesForCheckIn(ctx context.Context, checkinID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exposure_matches WHERE checkin_id = ?`, checkinID); err != nil {
		return fmt.Errorf("failed to delete exposure matches: %w", err)
	}
	return nil
}
