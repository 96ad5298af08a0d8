package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

// created on Close so that bulk recording does not maintain them
const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);`

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      source,
                      num_bins,
                      width,
                      config)
VALUES (?, ?, ?, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    source, 
    num_bins, 
    width, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    source, 
    num_bins, 
    width, 
    config 
FROM sessions
ORDER BY start_time, id`

	insertFramesSQL = `
INSERT INTO frames (session_id,
                    sequence,
                    timestamp,
                    magnitudes)
VALUES `

	selectFramesSQL = `
SELECT 
    sequence, 
    timestamp, 
    magnitudes
FROM frames
WHERE 
    session_id = ?`
)
