package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/live-spectrogram/internal/spectrum"
)

func TestParseVector(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		want    []float64
		wantErr bool
	}{
		{name: "log line", line: "1.23457 0.00000", want: []float64{1.23457, 0}},
		{name: "extra whitespace", line: "  3\t4   5 ", want: []float64{3, 4, 5}},
		{name: "scientific", line: "1e-3 2E2", want: []float64{0.001, 200}},
		{name: "empty", line: "   ", wantErr: true},
		{name: "garbage", line: "1.0 abc", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseVector(tc.line)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func readAll(t *testing.T, src Source) ([][]float64, error) {
	t.Helper()

	var vectors [][]float64
	for {
		v, err := src.Read(context.Background())
		if err != nil {
			return vectors, err
		}
		vectors = append(vectors, v)
	}
}

func TestReplay(t *testing.T) {
	r, err := NewReplay(strings.NewReader("1.00000 2.00000\n\n3.00000 4.00000\n"))
	require.NoError(t, err)
	defer r.Close()

	vectors, err := readAll(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, vectors)
}

func TestReplayLoops(t *testing.T) {
	r, err := NewReplay(strings.NewReader("1\n2\n"), WithLoop(true))
	require.NoError(t, err)

	var got []float64
	for range 5 {
		v, err := r.Read(context.Background())
		require.NoError(t, err)
		got = append(got, v[0])
	}
	assert.Equal(t, []float64{1, 2, 1, 2, 1}, got)
}

func TestReplayLoopOfEmptyInputEnds(t *testing.T) {
	r, err := NewReplay(strings.NewReader("\n\n"), WithLoop(true))
	require.NoError(t, err)

	_, err = r.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplayLoopNeedsSeeker(t *testing.T) {
	_, err := NewReplay(io.MultiReader(strings.NewReader("1\n")), WithLoop(true))
	assert.Error(t, err)
}

func TestReplayParseErrors(t *testing.T) {
	input := strings.Repeat("x\n", ParseErrorsThreshold) + "1\n"
	r, err := NewReplay(strings.NewReader(input))
	require.NoError(t, err)

	_, err = r.Read(context.Background())
	assert.ErrorIs(t, err, ErrTooManyParseErrors)

	// isolated bad lines are skipped
	r, err = NewReplay(strings.NewReader("x\n1\nx\n2\n"))
	require.NoError(t, err)

	vectors, err := readAll(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, [][]float64{{1}, {2}}, vectors)
}

func TestReplayPacing(t *testing.T) {
	r, err := NewReplay(strings.NewReader("1\n2\n3\n"), WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer r.Close()

	start := time.Now()
	_, err = readAll(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayReadsSessionLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("0.50000 1.00000 1.50000\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := NewReplay(f, WithLoop(true))
	require.NoError(t, err)

	for range 3 {
		v, err := r.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 1, 1.5}, v)
	}
}

func TestSynthetic(t *testing.T) {
	a := NewSynthetic(SyntheticConfig{NumBins: 64, Seed: 7})
	b := NewSynthetic(SyntheticConfig{NumBins: 64, Seed: 7})

	for range 20 {
		va, err := a.Read(context.Background())
		require.NoError(t, err)
		vb, err := b.Read(context.Background())
		require.NoError(t, err)

		require.Len(t, va, 64)
		assert.Equal(t, va, vb, "same seed, same sequence")
		for _, v := range va {
			assert.GreaterOrEqual(t, v, 0.0)
		}
	}
}

func TestSyntheticReturnsFreshSlices(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{NumBins: 8, Seed: 1})

	first, err := s.Read(context.Background())
	require.NoError(t, err)
	snapshot := append([]float64(nil), first...)

	_, err = s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot, first)
}

func TestSyntheticPeaks(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{NumBins: 128, Reflectors: 1, NoiseFloor: -1, Seed: 3})

	v, err := s.Read(context.Background())
	require.NoError(t, err)

	var peak float64
	var zeros int
	for _, x := range v {
		peak = max(peak, x)
		if x == 0 {
			zeros++
		}
	}
	assert.Greater(t, peak, 0.0)
	assert.Greater(t, zeros, 64, "a single reflector without noise lights a few bins only")
}

type fakeFrames struct {
	frames []spectrum.Frame
	pos    int
	err    error
}

func (f *fakeFrames) Next(context.Context) bool {
	if f.pos >= len(f.frames) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeFrames) Current() *spectrum.Frame { return &f.frames[f.pos-1] }
func (f *fakeFrames) Error() error             { return f.err }

func TestArchive(t *testing.T) {
	base := time.Now()
	frames := &fakeFrames{frames: []spectrum.Frame{
		{Sequence: 0, Timestamp: base, Magnitudes: []float64{1, 2}},
		{Sequence: 1, Timestamp: base.Add(20 * time.Millisecond), Magnitudes: []float64{3, 4}},
	}}

	a := NewArchive(frames, WithRecordedTiming())

	start := time.Now()
	vectors, err := readAll(t, a)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, vectors)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestArchiveError(t *testing.T) {
	failure := errors.New("disk gone")
	a := NewArchive(&fakeFrames{err: failure})

	_, err := a.Read(context.Background())
	assert.ErrorIs(t, err, failure)
}
