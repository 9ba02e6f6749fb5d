package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftduel/duelsync/internal/api"
	"github.com/riftduel/duelsync/internal/channel"
	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/dispatcher"
	"github.com/riftduel/duelsync/internal/logging"
	"github.com/riftduel/duelsync/internal/monitor"
	"github.com/riftduel/duelsync/internal/rpc"
	"github.com/riftduel/duelsync/internal/service"
	"github.com/riftduel/duelsync/internal/session"
	"github.com/riftduel/duelsync/internal/storage"
	"github.com/riftduel/duelsync/internal/store"
	"github.com/riftduel/duelsync/internal/worker"
	"github.com/riftduel/duelsync/pkg/core"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Session string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replication server",
		Long: `Run the two-slot replication server.

The server answers push, pull and trigger calls over msgpack-rpc. When the
recorder is enabled, every accepted write is also stored by the configured
backend (memory, sqlite, postgres or websocket).

Example:
  duelsync serve --addr :8080 --session "friday night"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.Session, "session", "duel", "session name used by the recorder")

	return cmd
}

// recorder is the optional pipeline from the service to a storage backend.
type recorder struct {
	cfg     config.RecorderConfig
	session *core.Session
	backend storage.Backend
	ch      channel.Channel[core.Record]
	manager *worker.Manager
	done    chan struct{}
}

func startRecorder(cfg config.RecorderConfig, buffer int, sess *core.Session, rt *runtime) (*recorder, error) {
	logger := rt.Logger()
	backend, err := storage.NewBackend(cfg, storage.Dependencies{Logger: logger, DBLogger: rt.zlog})
	if err != nil {
		return nil, err
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("recorder init: %w", err)
	}
	if err := backend.StartSession(sess); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("recorder start: %w", err)
	}

	r := &recorder{
		cfg:     cfg,
		session: sess,
		backend: backend,
		ch:      channel.New[core.Record](buffer),
		done:    make(chan struct{}),
	}
	r.manager = worker.NewManager(worker.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, r.ch, backend, logger)

	go func() {
		defer close(r.done)
		// closing the channel ends Run after a final flush
		_ = r.manager.Run(context.Background())
	}()

	logger.Info("Recorder started", "type", cfg.Type, "session", sess.ID.String())
	return r, nil
}

// stop closes the channel, waits for the last batch, ends the session and
// uploads the exported file when an archive is configured.
func (r *recorder) stop(ctx context.Context, logger *slog.Logger) {
	r.ch.Close()
	<-r.done
	if err := r.backend.EndSession(); err != nil {
		logger.Error("Failed to end recorded session", "error", err)
	}
	var exported string
	if exp, ok := r.backend.(storage.Exporter); ok {
		exported = exp.ExportedFilePath()
	}
	if err := r.backend.Close(); err != nil {
		logger.Error("Failed to close recorder backend", "error", err)
	}
	if exported == "" {
		return
	}
	logger.Info("Session exported", "path", exported)

	if !r.cfg.Upload.Enabled {
		return
	}
	if err := r.upload(ctx, exported); err != nil {
		logger.Error("Failed to upload recording, file kept on disk", "path", exported, "error", err)
		return
	}
	logger.Info("Recording uploaded", "url", r.cfg.Upload.URL)
}

func (r *recorder) upload(ctx context.Context, path string) error {
	c := api.New(r.cfg.Upload.URL, r.cfg.Upload.APIKey)
	if err := c.Healthcheck(ctx); err != nil {
		return err
	}
	end := r.session.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return c.Upload(ctx, path, api.Metadata{
		SessionID:   r.session.ID.String(),
		SessionName: r.session.Name,
		Duration:    end.Sub(r.session.StartedAt),
		Tag:         r.cfg.Upload.Tag,
	})
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	rt, err := newRuntime("server")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(flushCtx)
	}()
	logger := rt.Logger()

	sc := config.GetServerConfig()
	if opts.Addr != "" {
		sc.Addr = opts.Addr
	}

	sessions := session.NewContext()
	sess := sessions.Begin(opts.Session)

	svcOpts := []service.Option{service.WithLogger(logger)}
	var rec *recorder
	if rc := config.GetRecorderConfig(); rc.Enabled {
		rec, err = startRecorder(rc, sc.RecorderBuffer, sess, rt)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithRecorder(rec.ch))
	}

	svc := service.New(store.New(), svcOpts...)

	d, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	svc.RegisterHandlers(d)

	var mon *monitor.Service
	if mc := config.GetMonitorConfig(); mc.Enabled {
		deps := monitor.Dependencies{
			Logger:      logger,
			Replication: svc,
			Session:     sessions,
			File:        mc.File,
			Interval:    mc.Interval,
		}
		if lc := config.GetLoggingConfig(); lc.Dir != "" && !filepath.IsAbs(mc.File) {
			deps.File = filepath.Join(lc.Dir, mc.File)
		}
		if rec != nil {
			deps.Recorder = rec.manager
			if perf, ok := rec.backend.(storage.PerformanceRecorder); ok {
				deps.Performance = perf
			}
		}
		mon = monitor.NewService(deps)
		_ = mon.Start()
	}

	srv := rpc.NewServer(d, logger)
	serveErr := srv.ListenAndServe(ctx, sc.Addr)

	if mon != nil {
		mon.Stop()
	}
	sessions.End()
	if rec != nil {
		uploadCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		rec.stop(uploadCtx, logger)
		cancel()
	}
	logger.Info("Server stopped", "session", sess.ID.String(), "drops", svc.RecorderDrops())
	return serveErr
}
