package normalize

import (
	"fmt"
	"math"
	"strings"
)

// Epsilon replaces a zero denominator, so that an all-zero session maps every
// bin to 0 instead of dividing by zero.
const Epsilon = 1e-12

// Mode selects the normalization denominator.
type Mode string

const (
	// Global divides by the running session maximum, giving a brightness
	// scale that stays stable for the whole session.
	Global Mode = "global"

	// Local divides by the maximum of the current frame only.
	Local Mode = "local"
)

var validModes = map[Mode]struct{}{
	Global: {},
	Local:  {},
}

// ParseMode validates a mode name. The empty string selects Global.
func ParseMode(name string) (Mode, error) {
	if name == "" {
		return Global, nil
	}
	m := Mode(strings.ToLower(name))
	if _, ok := validModes[m]; !ok {
		return "", fmt.Errorf("unknown normalization mode: %s", name)
	}
	return m, nil
}

// Tracker keeps the running maximum magnitude of a session.
type Tracker struct {
	mode      Mode
	globalMax float64 // max of every value observed since the last reset
	localMax  float64 // max of the last observed frame
}

// NewTracker creates a tracker in the zero state.
func NewTracker(mode Mode) *Tracker {
	if _, ok := validModes[mode]; !ok {
		mode = Global
	}
	return &Tracker{mode: mode}
}

// Observe folds a frame into the running maximum and returns the frame's own
// maximum. Negative and non-finite values never raise the maximum.
func (t *Tracker) Observe(vector []float64) float64 {
	var localMax float64
	for _, v := range vector {
		if v > localMax && !math.IsInf(v, 1) {
			localMax = v
		}
	}

	t.localMax = localMax
	t.globalMax = math.Max(t.globalMax, localMax)
	return localMax
}

// Max returns the running session maximum.
func (t *Tracker) Max() float64 {
	return t.globalMax
}

// Denominator returns the divisor for the configured mode, epsilon guarded.
func (t *Tracker) Denominator() float64 {
	d := t.globalMax
	if t.mode == Local {
		d = t.localMax
	}
	if d <= 0 {
		return Epsilon
	}
	return d
}

// Normalize scales a raw magnitude into [0,1] against the current
// denominator. Negative and non-finite values map to 0.
func (t *Tracker) Normalize(v float64) float64 {
	if !(v > 0) || math.IsInf(v, 1) {
		return 0
	}
	return math.Min(v/t.Denominator(), 1)
}

// Reset returns the tracker to the zero state.
func (t *Tracker) Reset() {
	t.globalMax = 0
	t.localMax = 0
}
