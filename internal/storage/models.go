package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID        int64
	StartTime time.Time
	Source    string
	NumBins   int
	Width     int
	Config    sql.NullString
}

type frameData struct {
	SessionID  int64
	Sequence   uint64
	Timestamp  time.Time
	Magnitudes []byte
}
