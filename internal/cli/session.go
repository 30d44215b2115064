package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"voicebus.click/internal/audio"
	"voicebus.click/internal/config"
	"voicebus.click/internal/engine"
	"voicebus.click/internal/observe"
	"voicebus.click/internal/soundpack"
	"voicebus.click/internal/tracking"
)

const (
	// defaultLinger bounds the wait for voices once input ends
	defaultLinger = 30 * time.Second
	// closeTimeout bounds engine shutdown
	closeTimeout = 2 * time.Second
)

// newPipeline builds the loader for cfg: soundpack resolution, afero
// fetches and the decoder registry
func (c *CLI) newPipeline(cfg *config.Config) (*audio.Pipeline, error) {
	resolver, err := soundpack.Open(c.soundsFs, cfg.Soundpack, cfg.AudioDir,
		c.configManager.XDG().GetSoundpackPaths(cfg.Soundpack))
	if err != nil {
		return nil, fmt.Errorf("failed to open soundpack: %w", err)
	}

	slog.Debug("soundpack resolver initialized",
		"soundpack", cfg.Soundpack,
		"audio_dir", cfg.AudioDir,
		"resolver", resolver.Name())

	return audio.NewPipeline(resolver, audio.NewFsFetcher(c.soundsFs),
		audio.WithExtensions(cfg.Extensions),
		audio.WithTimeout(time.Duration(cfg.FetchTimeoutMS)*time.Millisecond),
	), nil
}

// session is one running engine with its device, tracking and metrics
type session struct {
	engine  *engine.Engine
	backend audio.Backend

	db     *sql.DB
	dbHook *tracking.DBHook

	metricsSrv      *observe.MetricsServer
	metricsShutdown func(context.Context) error
}

// openSession wires everything cfg asks for. Tracking and metrics
// failures degrade to running without them; backend failures are fatal.
func (c *CLI) openSession(ctx context.Context, cfg *config.Config, extra ...engine.Observer) (*session, error) {
	pipeline, err := c.newPipeline(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{}
	observers := []engine.Observer{tracking.NewSlogHook(nil).Observer()}

	if db := c.openTracking(cfg); db != nil {
		s.db = db
		s.dbHook = tracking.NewDBHook(db, "")
		observers = append(observers, s.dbHook.Observer())
		slog.Debug("tracking session started", "session_id", s.dbHook.SessionID())
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := s.startMetrics(ctx, cfg.Metrics.Address); err != nil {
			slog.Error("metrics unavailable, continuing without them", "error", err)
		} else {
			observers = append(observers, observe.DefaultMetrics().Observer())
		}
	}
	observers = append(observers, extra...)

	backendType := cfg.AudioBackend
	if !cfg.Enabled {
		backendType = "null"
	}
	backend, err := c.backendFactory.CreateBackend(backendType)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create audio backend '%s': %w", backendType, err)
	}
	s.backend = backend

	opts := engine.DefaultOptions()
	opts.Capacity = cfg.Bus.MaxVoices
	opts.BusVolume = cfg.Bus.Volume
	opts.SEVolume = cfg.SEVolume
	opts.FadeFrames = cfg.Voice.FadeFrames
	opts.FramesPerSecond = float64(cfg.Voice.FramesPerSecond)
	opts.SkipSE = engine.SkipSE{
		Name:   cfg.Voice.SkipSE.Name,
		Volume: cfg.Voice.SkipSE.Volume,
		Pitch:  cfg.Voice.SkipSE.Pitch,
		Pan:    cfg.Voice.SkipSE.Pan,
	}
	opts.Observers = observers

	out := audio.NewOutput(cfg.SampleRate)
	s.engine = engine.New(pipeline, out, opts)

	if err := backend.Start(out, cfg.SampleRate); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to start audio backend: %w", err)
	}

	slog.Debug("audio backend started", "backend", backend.Name(), "sample_rate", cfg.SampleRate)
	return s, nil
}

// openTracking opens the tracking database or returns nil
func (c *CLI) openTracking(cfg *config.Config) *sql.DB {
	if cfg.Tracking == nil || !cfg.Tracking.Enabled {
		slog.Debug("voice tracking disabled")
		return nil
	}

	dbPath := cfg.Tracking.DatabasePath
	if dbPath == "" {
		dbPath = tracking.GetDatabasePath(c.configManager.XDG().GetCachePath(""))
	}

	db, err := tracking.NewDatabase(dbPath)
	if err != nil {
		slog.Error("failed to initialize tracking database, continuing without tracking",
			"path", dbPath, "error", err)
		return nil
	}
	slog.Debug("tracking database initialized", "path", dbPath)
	return db
}

func (s *session) startMetrics(ctx context.Context, addr string) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("failed to initialise meter provider: %w", err)
	}
	srv, err := observe.ListenMetrics(addr)
	if err != nil {
		_ = shutdown(ctx)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.metricsShutdown = shutdown
	s.metricsSrv = srv
	return nil
}

// run drives the engine loop and the metrics endpoint while work runs,
// then waits up to linger for voices to finish and closes the engine.
// A zero linger waits until idle or until ctx is done.
func (s *session) run(ctx context.Context, linger time.Duration, work func(ctx context.Context) error) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		if err := s.engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if s.metricsSrv != nil {
		g.Go(func() error {
			if err := s.metricsSrv.Serve(gctx); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
			return nil
		})
	}

	workErr := work(ctx)

	waitCtx, cancelWait := ctx, context.CancelFunc(func() {})
	if linger > 0 {
		waitCtx, cancelWait = context.WithTimeout(ctx, linger)
	}
	if err := s.engine.WaitIdle(waitCtx, 0); err != nil {
		slog.Info("stopping voices before they finished", "reason", err)
	}
	cancelWait()

	closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
	if err := s.engine.Close(closeCtx); err != nil {
		slog.Warn("engine close timed out", "error", err)
	}
	cancelClose()

	stopLoop()
	if err := g.Wait(); err != nil && workErr == nil {
		workErr = err
	}
	return workErr
}

// close releases the device, the database and the meter provider
func (s *session) close() {
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			slog.Error("error closing audio backend", "error", err)
		}
	}
	if s.db != nil {
		if s.dbHook != nil {
			slog.Debug("tracking session finished",
				"session_id", s.dbHook.SessionID(),
				"events", s.dbHook.Written())
		}
		if err := s.db.Close(); err != nil {
			slog.Error("error closing tracking database", "error", err)
		}
	}
	if s.metricsShutdown != nil {
		if err := s.metricsShutdown(context.Background()); err != nil {
			slog.Warn("meter provider shutdown failed", "error", err)
		}
	}
}
