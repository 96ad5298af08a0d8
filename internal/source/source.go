// Package source provides magnitude vector producers for the render loop.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")

	// ErrClosed is returned by Read after the source has been closed or has finished
	ErrClosed = errors.New("source closed")
)

// Source produces one magnitude vector per call. Read blocks until a vector
// is available, the source fails, or ctx is done. Every returned slice is
// newly allocated and is never modified by the source afterwards.
type Source interface {
	Read(ctx context.Context) ([]float64, error)
}

// ParseVector parses one line of space separated magnitudes, the format
// written by the session log.
func ParseVector(line string) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty line")
	}

	vector := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid magnitude at bin %d: %w", i, err)
		}
		vector[i] = v
	}
	return vector, nil
}
