package timeclock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAlreadyClockedIn = errors.New("timeclock: already clocked in")
var ErrNotClockedIn = errors.New("timeclock: no open entry")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ClockIn(ctx context.Context, userID, note string) (Entry, error) {
	open, err := s.openEntry(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	if open != nil {
		return Entry{}, ErrAlreadyClockedIn
	}

	entry := Entry{
		ID:      uuid.NewString(),
		UserID:  userID,
		ClockIn: time.Now().UTC(),
		Note:    note,
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO time_entries (id, user_id, clock_in, note)
    VALUES ($1, $2, $3, $4)
  `, entry.ID, entry.UserID, entry.ClockIn, entry.Note)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Store) ClockOut(ctx context.Context, userID string) (Entry, error) {
	open, err := s.openEntry(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	if open == nil {
		return Entry{}, ErrNotClockedIn
	}

	now := time.Now().UTC()
	_, err = s.DB.Exec(ctx, `
    UPDATE time_entries SET clock_out = $1 WHERE id = $2
  `, now, open.ID)
	if err != nil {
		return Entry{}, err
	}
	open.ClockOut = &now
	return *open, nil
}

func (s *Store) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, clock_in, clock_out, COALESCE(note, '')
    FROM time_entries
    WHERE user_id = $1 AND clock_in >= $2 AND clock_in < $3
    ORDER BY clock_in
  `, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ClockIn, &entry.ClockOut, &entry.Note); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) openEntry(ctx context.Context, userID string) (*Entry, error) {
	var entry Entry
	err := s.DB.QueryRow(ctx, `
    SELECT id, user_id, clock_in, COALESCE(note, '')
    FROM time_entries
    WHERE user_id = $1 AND clock_out IS NULL
    ORDER BY clock_in DESC
    LIMIT 1
  `, userID).Scan(&entry.ID, &entry.UserID, &entry.ClockIn, &entry.Note)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
