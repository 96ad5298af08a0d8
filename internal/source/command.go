package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

// maxLineSize bounds a single stdout line. Wide FFT frames easily exceed the
// scanner default of 64 KiB.
const maxLineSize = 4 << 20

// WithCommandLogger sets the logger for the command source
func WithCommandLogger(logger *slog.Logger) func(c *Command) {
	return func(c *Command) {
		c.logger = logger.With(
			slog.String("source", "command"),
			slog.String("program", c.name),
		)
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(c *Command) {
	return func(c *Command) {
		c.parseErrorsThreshold = threshold
	}
}

// Command runs an external program that prints one magnitude vector per line
// on stdout. Lines on stderr are logged as warnings.
type Command struct {
	name    string
	binPath string
	args    []string

	vectors chan []float64
	done    chan struct{}
	err     error // valid once done is closed

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewCommand resolves the program in PATH and prepares the source. The
// program is not started until Start.
func NewCommand(name string, args []string, options ...func(c *Command)) (*Command, error) {
	binPath, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("error finding program: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Command{
		name:                 name,
		binPath:              binPath,
		args:                 args,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// Start launches the program. It can be called once.
func (c *Command) Start(ctx context.Context) error {
	if !c.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("command is already running")
	}

	ctx, c.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, c.binPath, c.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.isRunning.Store(false) // Reset running state on error
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		c.isRunning.Store(false) // Reset running state on error
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		c.isRunning.Store(false) // Reset running state on error
		return fmt.Errorf("error starting command: %w", err)
	}

	c.vectors = make(chan []float64)
	c.done = make(chan struct{})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.done)

		c.logger.Info("reading magnitudes...")

		results := make(chan error, 2) // stdout and stderr readers

		go c.handleStdout(ctx, stdout, results)
		go c.handleStderr(stderr, results)

		var errs []error
		for i := 0; i < cap(results); i++ {
			if err := <-results; err != nil {
				c.cancel() // cancel context on error
				c.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		// Wait must follow the pipe readers
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			errs = append(errs, fmt.Errorf("command exited with error: %w", err))
		}

		c.logger.Info("command stopped")

		c.err = errors.Join(errs...)
		c.isRunning.Store(false)
	}()

	return nil
}

// Read implements Source. After the program has exited, Read returns the
// error it failed with, or ErrClosed when it finished cleanly.
func (c *Command) Read(ctx context.Context) ([]float64, error) {
	if c.done == nil {
		return nil, fmt.Errorf("command is not started")
	}

	select {
	case v := <-c.vectors:
		return v, nil
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop terminates the program and waits for the readers to finish.
func (c *Command) Stop() {
	if c.cancel == nil {
		return // never started
	}

	c.cancel()
	c.wg.Wait()
}

// IsRunning returns true while the program is running
func (c *Command) IsRunning() bool {
	return c.isRunning.Load()
}

// handleStdout reads from stdout, parses vectors and hands them to Read.
func (c *Command) handleStdout(ctx context.Context, stdout io.Reader, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(nil, maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		vector, err := ParseVector(line)
		if err != nil {
			parseErrors++
			c.logger.Warn(fmt.Sprintf("error parsing magnitudes: %s", err.Error()), slog.String("line", line))

			if parseErrors >= c.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter

		select {
		case c.vectors <- vector:
		case <-ctx.Done():
			done <- nil
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs errors.
func (c *Command) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		c.logger.Warn(fmt.Sprintf("%s >> %s", c.name, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}
