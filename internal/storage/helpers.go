package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

const float64Size = 8

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls back a transaction that was not committed. A
// committed transaction reports sql.ErrTxDone, which is not an error here.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// encodeMagnitudes packs a vector as little-endian float64 values.
func encodeMagnitudes(vector []float64) []byte {
	p := make([]byte, 0, len(vector)*float64Size)
	for _, v := range vector {
		p = binary.LittleEndian.AppendUint64(p, math.Float64bits(v))
	}
	return p
}

func decodeMagnitudes(p []byte) ([]float64, error) {
	if len(p)%float64Size != 0 {
		return nil, fmt.Errorf("magnitudes blob of %d bytes is not a whole number of values", len(p))
	}

	vector := make([]float64, len(p)/float64Size)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(p[i*float64Size:]))
	}
	return vector, nil
}

func toFrameData(sessionID int64, f spectrum.Frame) *frameData {
	return &frameData{
		SessionID:  sessionID,
		Sequence:   f.Sequence,
		Timestamp:  f.Timestamp.UTC(),
		Magnitudes: encodeMagnitudes(f.Magnitudes),
	}
}

func toSession(data *sessionData) *spectrum.Session {
	sess := spectrum.Session{
		ID:        data.ID,
		StartTime: data.StartTime,
		Source:    data.Source,
		NumBins:   data.NumBins,
		Columns:   data.Width,
	}
	if data.Config.Valid {
		sess.Config = &data.Config.String
	}
	return &sess
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*spectrum.Session, error) {
	var data sessionData
	if err := row.Scan(&data.ID, &data.StartTime, &data.Source, &data.NumBins, &data.Width, &data.Config); err != nil {
		return nil, err
	}
	return toSession(&data), nil
}
