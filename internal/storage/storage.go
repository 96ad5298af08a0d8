// Package storage archives rendered sessions and their raw frames in SQLite.
package storage

import (
	"context"
	"errors"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

// ErrNoData indicates that all frames have been read from a frame reader.
var ErrNoData = errors.New("no data available")

// Store provides an interface for archiving spectrogram sessions and the
// magnitude vectors rendered in them.
type Store interface {
	// CreateSession records a new session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session metadata; ID is ignored
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, session *spectrum.Session, config any) (sessionID int64, err error)

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (*spectrum.Session, error)

	// Sessions returns all archived sessions ordered by start time.
	Sessions(ctx context.Context) ([]*spectrum.Session, error)

	// StoreFrames saves frames of one session. All frames are stored in a
	// single transaction.
	StoreFrames(ctx context.Context, sessionID int64, frames []spectrum.Frame) error

	// ReadFrames returns a reader over the frames of a session in sequence
	// order. The reader must be closed after use.
	ReadFrames(ctx context.Context, sessionID int64, opts ...ReaderOption) (FrameReader, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

// FrameReader iterates over archived frames.
type FrameReader interface {
	// Session returns metadata about the session being read.
	Session() *spectrum.Session

	// Next advances the iterator and returns true if there is another frame
	// to read, false when the iteration is complete or if an error occurred.
	Next(ctx context.Context) bool

	// Current returns the current frame.
	Current() *spectrum.Frame

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases the database resources.
	Close() error
}
