//go:build !windows

package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startShell(t *testing.T, script string) *Command {
	t.Helper()

	c, err := NewCommand("sh", []string{"-c", script})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c
}

func TestCommandReadsVectors(t *testing.T) {
	c := startShell(t, `printf '1 2 3\n\n4 5 6\n'; echo warming up >&2`)

	vectors, err := readAll(t, c)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, vectors)
	assert.Eventually(t, func() bool { return !c.IsRunning() }, time.Second, time.Millisecond)
}

func TestCommandParseErrors(t *testing.T) {
	c := startShell(t, `for i in 1 2 3 4 5 6; do echo oops; done; exec sleep 5`)

	_, err := readAll(t, c)
	assert.ErrorIs(t, err, ErrTooManyParseErrors)
}

func TestCommandExitStatus(t *testing.T) {
	c := startShell(t, `echo 1; exit 3`)

	vectors, err := readAll(t, c)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed)
	assert.Len(t, vectors, 1)
}

func TestCommandStop(t *testing.T) {
	c := startShell(t, `while true; do echo 1 2; sleep 0.01; done`)

	_, err := c.Read(context.Background())
	require.NoError(t, err)

	c.Stop()
	assert.False(t, c.IsRunning())

	_, err = c.Read(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCommandReadHonoursContext(t *testing.T) {
	c := startShell(t, `exec sleep 5`)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandNotFound(t *testing.T) {
	_, err := NewCommand("definitely-not-a-real-program-4711", nil)
	assert.Error(t, err)
}
