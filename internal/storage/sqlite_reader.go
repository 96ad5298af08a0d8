package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

// ReaderOption configures a frame reader with filtering criteria.
type ReaderOption func(*SqliteFrameReader)

// WithStartTime excludes frames recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes frames recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SqliteFrameReader implements FrameReader for SQLite database backend.
type SqliteFrameReader struct {
	db *sql.DB

	sessionID int64
	session   *spectrum.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *spectrum.Frame
	rows    *sql.Rows
	err     error
}

func newSqliteFrameReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteFrameReader, error) {
	fr := &SqliteFrameReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(fr)
	}
	if err := fr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return fr, nil
}

func (fr *SqliteFrameReader) init(ctx context.Context) error {
	if fr.db == nil {
		return errors.New("database connection required")
	}
	if fr.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if fr.startTime != nil && fr.endTime != nil && fr.startTime.After(*fr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", fr.startTime, fr.endTime)
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: fr.loadSession},
		{msg: "initializing query", fn: fr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (fr *SqliteFrameReader) loadSession(ctx context.Context) (err error) {
	stmt, err := fr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if fr.session, err = scanSession(stmt.QueryRowContext(ctx, fr.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (fr *SqliteFrameReader) initQuery(ctx context.Context) (err error) {
	var sb strings.Builder
	sb.WriteString(selectFramesSQL)

	args := []any{fr.sessionID}
	if fr.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, fr.startTime.UTC())
	}
	if fr.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, fr.endTime.UTC())
	}
	sb.WriteString(" ORDER BY sequence")

	// the statement has to outlive this call: rows are read lazily
	if fr.rows, err = fr.db.QueryContext(ctx, sb.String(), args...); err != nil {
		return err
	}
	return nil
}

func (fr *SqliteFrameReader) Session() *spectrum.Session {
	return fr.session
}

func (fr *SqliteFrameReader) Next(ctx context.Context) bool {
	if fr.err != nil || fr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		fr.err = ctx.Err()
		return false
	default:
	}

	if !fr.rows.Next() {
		fr.current = nil
		fr.err = ErrNoData
		return false
	}

	var data frameData
	if err := fr.rows.Scan(&data.Sequence, &data.Timestamp, &data.Magnitudes); err != nil {
		fr.err = fmt.Errorf("scanning frame: %w", err)
		return false
	}

	magnitudes, err := decodeMagnitudes(data.Magnitudes)
	if err != nil {
		fr.err = fmt.Errorf("decoding frame %d: %w", data.Sequence, err)
		return false
	}

	fr.current = &spectrum.Frame{
		Sequence:   data.Sequence,
		Timestamp:  data.Timestamp,
		Magnitudes: magnitudes,
	}
	return true
}

func (fr *SqliteFrameReader) Current() *spectrum.Frame {
	return fr.current
}

func (fr *SqliteFrameReader) Error() error {
	if fr.err != nil && !errors.Is(fr.err, ErrNoData) {
		return fr.err
	}
	if fr.rows != nil {
		return fr.rows.Err()
	}
	return nil
}

func (fr *SqliteFrameReader) Close() error {
	if fr.rows != nil {
		err := fr.rows.Close()
		fr.current = nil
		fr.rows = nil
		return err
	}
	return nil
}
