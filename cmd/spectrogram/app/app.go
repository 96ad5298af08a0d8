package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/live-spectrogram/internal/colormap"
	"github.com/roman-kulish/live-spectrogram/internal/logsink"
	"github.com/roman-kulish/live-spectrogram/internal/render"
	"github.com/roman-kulish/live-spectrogram/internal/storage"
	"github.com/roman-kulish/live-spectrogram/internal/surface"
)

// Run wires the configured source to the render loop and presents the
// result either in a window or offscreen. It returns when ctx is done or the
// window is closed. A headless run also returns when the loop ends; a window
// keeps showing the last frame after a source failure, which is returned
// once the window is closed.
func Run(ctx context.Context, config *Config, headless bool, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	src, stopSource, err := createSource(ctx, config, logger)
	if err != nil {
		return err
	}
	defer stopSource()

	surf := surface.NewOffscreen()
	if headless {
		surf.Resize(config.Window.Width, config.Window.Height)
	}

	options, cleanup, err := loopOptions(config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)

	if config.Storage.Enabled {
		store := storage.NewSqliteStore(config.Storage.Path)
		defer store.Close()

		recorder := storage.NewRecorder(store,
			storage.WithRecorderLogger(logger),
			storage.WithMaxBatchSize(config.Storage.MaxBatchSize),
			storage.WithQueueSize(config.Storage.QueueSize),
			storage.WithFlushInterval(time.Duration(config.Storage.FlushInterval)),
			storage.WithSessionConfig(config.Source))
		options = append(options, render.WithRecorder(recorder))

		// the recorder outlives the loop so that it can flush the tail
		recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
		defer stopRecorder()

		recorderDone := make(chan error, 1)
		go func() { recorderDone <- recorder.Run(recorderCtx) }()
		defer func() {
			stopRecorder()
			if err := <-recorderDone; err != nil {
				logger.Error(fmt.Sprintf("archiving frames: %s", err.Error()))
			}
		}()

		logger.Info("archiving sessions", slog.String("path", config.Storage.Path))
	}

	loop := render.NewLoop(src, surf, options...)

	g.Go(func() error {
		reportTelemetry(gctx, loop, time.Duration(config.Telemetry.Interval), logger)
		return nil
	})

	if config.Snapshot.Path != "" {
		snap := newSnapshotter(surf, &config.Snapshot, logger)
		g.Go(func() error { return snap.Run(gctx) })
	}

	if headless {
		g.Go(func() error {
			defer cancel() // nothing else ends a headless run
			return runLoop(gctx, loop, logger)
		})
		g.Go(func() error {
			handleHangup(gctx, loop.Signal(), logger)
			return nil
		})

		logger.Info("rendering offscreen, send SIGHUP to start a new session",
			slog.Int("width", config.Window.Width),
			slog.Int("height", config.Window.Height))

		return g.Wait()
	}

	ebiten.SetWindowSize(config.Window.Width, config.Window.Height)
	ebiten.SetWindowTitle(config.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(config.Window.TPS)

	// the viewer outlives a failed loop, only the user or ctx closes the window
	viewer := NewViewer(ctx, surf, loop.Signal(), loop, config.Window.Title)

	var loopErr error
	g.Go(func() error {
		loopErr = runWindowedLoop(gctx, loop, viewer, logger)
		return nil
	})

	if err = ebiten.RunGame(viewer); err != nil && !errors.Is(err, ebiten.Termination) {
		cancel()
		return errors.Join(fmt.Errorf("running viewer: %w", err), g.Wait(), loopErr)
	}

	// the window was closed
	cancel()
	err = g.Wait()
	return errors.Join(err, loopErr)
}

// runLoop runs the render loop until it ends. A source that ran out of input
// finished cleanly.
func runLoop(ctx context.Context, loop *render.Loop, logger *slog.Logger) error {
	err := loop.Run(ctx)
	if err != nil && isEndOfInput(err) {
		logger.Info("source finished")
		return nil
	}
	return err
}

// runWindowedLoop runs the render loop behind a viewer. The viewer is told
// about a failure and keeps showing the last presented frame.
func runWindowedLoop(ctx context.Context, loop *render.Loop, viewer *Viewer, logger *slog.Logger) error {
	err := runLoop(ctx, loop, logger)
	if err != nil {
		viewer.Fail(err)
	}
	return err
}

// loopOptions translates the render configuration. cleanup releases the
// session log and the overlay font.
func loopOptions(config *Config, logger *slog.Logger) ([]func(*render.Loop), func(), error) {
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	bg, err := config.Render.BackgroundColor()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing background: %w", err)
	}
	r, g, b := bg.RGB255()

	options := []func(*render.Loop){
		render.WithLogger(logger),
		render.WithMapper(colormap.NewMapperWithSize(config.Render.Theme, config.Render.ColorMapSize)),
		render.WithNormalization(config.Render.Normalization),
		render.WithColumns(config.Render.Columns),
		render.WithBackground(color.RGBA{R: r, G: g, B: b, A: 0xff}),
		render.WithInterpolator(scaler(config.Render.Interpolation)),
		render.WithAcquireTimeout(time.Duration(config.Render.AcquireTimeout)),
		render.WithSourceName(string(config.Source.Type)),
	}

	if config.Render.LeftMargin != nil {
		options = append(options, render.WithLeftMargin(*config.Render.LeftMargin))
	} else if !config.Render.Overlay.Enabled {
		options = append(options, render.WithLeftMargin(0))
	}

	if config.Render.Overlay.Enabled {
		overlay, err := render.NewRangeScale(render.RangeScaleConfig{
			RangeMeters: config.Render.Overlay.RangeMeters,
			Steps:       config.Render.Overlay.Steps,
			Gridlines:   config.Render.Overlay.Gridlines,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating overlay: %w", err)
		}
		closers = append(closers, func() { _ = overlay.Close() })
		options = append(options, render.WithOverlay(overlay))
	}

	if config.SessionLog.Enabled {
		// a log that cannot be opened is not fatal, rendering goes on without it
		sink, f, err := logsink.Open(config.SessionLog.Path, logsink.WithLogger(logger))
		if err != nil {
			logger.Warn(fmt.Sprintf("session log disabled: %s", err.Error()), slog.String("path", config.SessionLog.Path))
		} else {
			closers = append(closers, func() { _ = f.Close() })
			options = append(options, render.WithSessionLog(sink))
		}
	}

	return options, cleanup, nil
}

func scaler(interpolation Interpolation) xdraw.Scaler {
	switch interpolation {
	case InterpolationApprox:
		return xdraw.ApproxBiLinear
	case InterpolationBiLinear:
		return xdraw.BiLinear
	case InterpolationCatmullRom:
		return xdraw.CatmullRom
	default:
		return xdraw.NearestNeighbor
	}
}

// handleHangup turns SIGHUP into reset requests until ctx is done.
func handleHangup(ctx context.Context, reset *render.Signal, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			logger.Info("reset requested")
			reset.Request()
		case <-ctx.Done():
			return
		}
	}
}
