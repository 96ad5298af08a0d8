package spectrum

import (
	"time"
)

// Session describes one render session: the interval between a reset (or the
// first frame) and the next reset. Frames of one session share the bin count.
type Session struct {
	ID        int64     `json:"ID"`                      // Archive identifier, zero until stored
	Number    uint64    `json:"number"`                  // Sequence number of the session within the process
	StartTime time.Time `json:"startTime"`               // When the session began
	Source    string    `json:"source"`                  // Kind of magnitude source (e.g., "synthetic", "command")
	NumBins   int       `json:"numBins"`                 // Length of every magnitude vector in the session
	Columns   int       `json:"columns"`                 // Width of the scrolling raster
	Config    *string   `json:"config,string,omitempty"` // Optional source configuration in JSON format
}

// Frame is one magnitude vector as it was read from the source.
type Frame struct {
	Sequence   uint64    `json:"sequence"`   // Position of the frame within its session, starting at 0
	Timestamp  time.Time `json:"timestamp"`  // When the frame was read
	Magnitudes []float64 `json:"magnitudes"` // Raw, unnormalized per-bin magnitudes
}
