package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

const (
	DefaultQueueSize     = 1024
	DefaultMaxBatchSize  = 64
	DefaultFlushInterval = time.Second
)

// SessionWriter is the part of Store used by Recorder.
type SessionWriter interface {
	CreateSession(ctx context.Context, session *spectrum.Session, config any) (int64, error)
	StoreFrames(ctx context.Context, sessionID int64, frames []spectrum.Frame) error
}

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(r *Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithQueueSize sets the number of frames that may wait for storage before
// new ones are dropped.
func WithQueueSize(size int) func(r *Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.queueSize = size
		}
	}
}

// WithMaxBatchSize sets the number of frames written per transaction.
func WithMaxBatchSize(size int) func(r *Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.maxBatchSize = size
		}
	}
}

// WithFlushInterval bounds how long a partial batch waits.
func WithFlushInterval(interval time.Duration) func(r *Recorder) {
	return func(r *Recorder) {
		if interval > 0 {
			r.flushInterval = interval
		}
	}
}

// WithSessionConfig attaches a configuration to every archived session.
func WithSessionConfig(config any) func(r *Recorder) {
	return func(r *Recorder) {
		r.config = config
	}
}

type record struct {
	session *spectrum.Session
	frame   spectrum.Frame
}

// Recorder archives rendered frames in the background. Record never blocks:
// when the queue is full the frame is dropped and counted. A session is
// created in the store the first time one of its frames is written.
type Recorder struct {
	store  SessionWriter
	config any

	queue         chan record
	queueSize     int
	maxBatchSize  int
	flushInterval time.Duration

	sessions map[*spectrum.Session]int64 // owned by Run

	written atomic.Uint64
	dropped atomic.Uint64

	logger *slog.Logger
}

// NewRecorder creates a recorder writing to store. Frames are written only
// while Run is active.
func NewRecorder(store SessionWriter, options ...func(r *Recorder)) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Recorder{
		store:         store,
		queueSize:     DefaultQueueSize,
		maxBatchSize:  DefaultMaxBatchSize,
		flushInterval: DefaultFlushInterval,
		sessions:      make(map[*spectrum.Session]int64),
		logger:        logger,
	}

	for _, option := range options {
		option(&r)
	}

	r.queue = make(chan record, r.queueSize)
	return &r
}

// Record queues a frame of session for archiving.
func (r *Recorder) Record(session *spectrum.Session, frame spectrum.Frame) {
	select {
	case r.queue <- record{session: session, frame: frame}:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued frames until ctx is done, then flushes what is left in
// the queue.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]record, 0, r.maxBatchSize)
	for {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) < r.maxBatchSize {
				continue
			}

		case <-ticker.C:

		case <-ctx.Done():
		drain:
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
				default:
					break drain
				}
			}

			// the run context is already done
			err := r.flush(context.WithoutCancel(ctx), batch)
			r.logger.Info("recorder stopped",
				slog.Uint64("written", r.written.Load()),
				slog.Uint64("dropped", r.dropped.Load()))
			return err
		}

		if err := r.flush(ctx, batch); err != nil {
			r.logger.Error(err.Error())
		}
		batch = batch[:0]
	}
}

// flush writes batch grouped by consecutive session. Frames of a failed
// group are counted as dropped.
func (r *Recorder) flush(ctx context.Context, batch []record) error {
	var firstErr error

	for start := 0; start < len(batch); {
		session := batch[start].session
		end := start + 1
		for end < len(batch) && batch[end].session == session {
			end++
		}

		frames := make([]spectrum.Frame, 0, end-start)
		for _, rec := range batch[start:end] {
			frames = append(frames, rec.frame)
		}

		if err := r.write(ctx, session, frames); err != nil {
			r.dropped.Add(uint64(len(frames)))
			if firstErr == nil {
				firstErr = err
			}
		} else {
			r.written.Add(uint64(len(frames)))
		}

		start = end
	}

	return firstErr
}

func (r *Recorder) write(ctx context.Context, session *spectrum.Session, frames []spectrum.Frame) error {
	sessionID, ok := r.sessions[session]
	if !ok {
		var err error
		if sessionID, err = r.store.CreateSession(ctx, session, r.config); err != nil {
			return fmt.Errorf("archiving session %d: %w", session.Number, err)
		}

		// only the current session can receive more frames
		clear(r.sessions)
		r.sessions[session] = sessionID

		r.logger.Debug("session archived",
			slog.Uint64("session", session.Number),
			slog.Int64("id", sessionID))
	}

	if err := r.store.StoreFrames(ctx, sessionID, frames); err != nil {
		return fmt.Errorf("archiving frames of session %d: %w", session.Number, err)
	}
	return nil
}

// Written returns the number of archived frames.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns the number of frames that were not archived.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}
