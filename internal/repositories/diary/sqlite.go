package diary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/dbx"
	"github.com/mkraev/venuetrace/internal/models"
	"github.com/mkraev/venuetrace/internal/timex"
)

// SQLiteRepository implements Repository over the diary and active_checkin
// tables. It holds the *sql.DB (not a DBTX) because Swap and ReplaceAll run
// multi-statement transactions.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a SQLiteRepository bound to db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func insertRecord(ctx context.Context, db dbx.DBTX, rec *models.CheckInRecord) error {
	if rec.Departure == nil {
		return errors.New("diary records must be checked out")
	}

	info, err := json.Marshal(rec.VenueInfo)
	if err != nil {
		return fmt.Errorf("failed to encode venue info: %w", err)
	}

	query := `INSERT INTO diary (id, venue_token, venue_info, arrival, departure, comment, hidden)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = db.ExecContext(ctx, query,
		rec.ID, rec.VenueToken, info, rec.Arrival.Unix(), rec.Departure.Unix(),
		nullString(rec.Comment), boolToInt(rec.Hidden))
	if err != nil {
		return fmt.Errorf("failed to insert diary record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Append(ctx context.Context, rec *models.CheckInRecord) error {
	return insertRecord(ctx, r.db, rec)
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM diary WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete diary record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.CheckInRecord, error) {
	query := `SELECT id, venue_token, venue_info, arrival, departure, comment, hidden
			FROM diary ORDER BY arrival`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select diary records: %w", err)
	}
	defer rows.Close()

	var result []models.CheckInRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, recs []models.CheckInRecord) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM diary`); err != nil {
			return fmt.Errorf("failed to clear diary: %w", err)
		}
		for i := range recs {
			if err := insertRecord(ctx, tx, &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Swap(ctx context.Context, removeID string, rec *models.CheckInRecord) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM diary WHERE id = ?`, removeID)
		if err != nil {
			return fmt.Errorf("failed to delete diary record: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra != 1 {
			return fmt.Errorf("%w: %d rows affected", common.ErrNotFound, ra)
		}
		return insertRecord(ctx, tx, rec)
	})
}

func (r *SQLiteRepository) UpdateAnnotations(ctx context.Context, id string, comment *string, hidden bool) error {
	query := `UPDATE diary SET comment = ?, hidden = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, nullString(comment), boolToInt(hidden), id)
	if err != nil {
		return fmt.Errorf("failed to update annotations: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: %d rows affected", common.ErrNotFound, ra)
	}
	return nil
}

func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, now time.Time, daysToKeep int) error {
	if daysToKeep <= 0 {
		// Explicit full-wipe escape hatch.
		if _, err := r.db.ExecContext(ctx, `DELETE FROM diary`); err != nil {
			return fmt.Errorf("failed to wipe diary: %w", err)
		}
		return nil
	}

	cutoff := timex.DayCutoff(now, daysToKeep)
	if _, err := r.db.ExecContext(ctx, `DELETE FROM diary WHERE arrival < ?`, cutoff.Unix()); err != nil {
		return fmt.Errorf("failed to prune diary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ActiveCheckIn(ctx context.Context) (*models.CheckInRecord, error) {
	query := `SELECT venue_token, venue_info, arrival, comment, hidden FROM active_checkin WHERE slot = 1`
	row := r.db.QueryRowContext(ctx, query)

	var (
		token   []byte
		info    []byte
		arrival int64
		comment sql.NullString
		hidden  int
	)
	if err := row.Scan(&token, &info, &arrival, &comment, &hidden); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read active check-in: %w", err)
	}

	rec := &models.CheckInRecord{
		VenueToken: token,
		Arrival:    time.Unix(arrival, 0).UTC(),
		Hidden:     hidden != 0,
	}
	if err := json.Unmarshal(info, &rec.VenueInfo); err != nil {
		return nil, fmt.Errorf("failed to decode venue info: %w", err)
	}
	if comment.Valid {
		c := comment.String
		rec.Comment = &c
	}
	return rec, nil
}

func (r *SQLiteRepository) SetActiveCheckIn(ctx context.Context, rec *models.CheckInRecord) error {
	info, err := json.Marshal(rec.VenueInfo)
	if err != nil {
		return fmt.Errorf("failed to encode venue info: %w", err)
	}

	query := `INSERT INTO active_checkin (slot, venue_token, venue_info, arrival, comment, hidden)
			VALUES (1, ?, ?, ?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET venue_token = excluded.venue_token,
				venue_info = excluded.venue_info,
				arrival = excluded.arrival,
				comment = excluded.comment,
				hidden = excluded.hidden`
	_, err = r.db.ExecContext(ctx, query,
		rec.VenueToken, info, rec.Arrival.Unix(), nullString(rec.Comment), boolToInt(rec.Hidden))
	if err != nil {
		return fmt.Errorf("failed to store active check-in: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearActiveCheckIn(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM active_checkin WHERE slot = 1`); err != nil {
		return fmt.Errorf("failed to clear active check-in: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.CheckInRecord, error) {
	var (
		token     []byte
		info      []byte
		arrival   int64
		departure sql.NullInt64
		comment   sql.NullString
		hidden    int
	)

	rec := &models.CheckInRecord{}
	if err := row.Scan(&rec.ID, &token, &info, &arrival, &departure, &comment, &hidden); err != nil {
		return nil, fmt.Errorf("row scan failed: %w", err)
	}

	rec.VenueToken = token
	rec.Arrival = time.Unix(arrival, 0).UTC()
	rec.Hidden = hidden != 0
	if err := json.Unmarshal(info, &rec.VenueInfo); err != nil {
		return nil, fmt.Errorf("failed to decode venue info: %w", err)
	}
	if departure.Valid {
		d := time.Unix(departure.Int64, 0).UTC()
		rec.Departure = &d
	}
	if comment.Valid {
		c := comment.String
		rec.Comment = &c
	}
	return rec, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
