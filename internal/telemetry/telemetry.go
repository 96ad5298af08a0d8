package telemetry

import (
	"time"
)

// Provider exposes a point-in-time view of a running render loop.
type Provider interface {
	Get() *Telemetry
}

// Telemetry is a snapshot of render loop counters. Counters are cumulative
// for the process unless noted otherwise.
type Telemetry struct {
	Timestamp    time.Time `json:"timestamp"`    // When the snapshot was taken
	Running      bool      `json:"running"`      // Whether the loop is currently running
	Session      uint64    `json:"session"`      // Current session number, 0 before the first frame
	SessionStart time.Time `json:"sessionStart"` // Start of the current session
	NumBins      int       `json:"numBins"`      // Bins per frame in the current session
	Columns      int       `json:"columns"`      // Raster width in the current session
	Cursor       int       `json:"cursor"`       // Next column to be written
	GlobalMax    float64   `json:"globalMax"`    // Running maximum of the current session
	Frames       uint64    `json:"frames"`       // Frames rendered into the raster
	Presented    uint64    `json:"presented"`    // Frames presented to the surface
	Skipped      uint64    `json:"skipped"`      // Frames not presented because the surface was unavailable
	Resets       uint64    `json:"resets"`       // Sessions started by a reset signal
	LogEnabled   bool      `json:"logEnabled"`   // Whether the session log still accepts frames
	LogBytes     int64     `json:"logBytes"`     // Bytes in the session log for the current session
	Dropped      uint64    `json:"dropped"`      // Frames the archive recorder had to drop
}
