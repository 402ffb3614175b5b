package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/capture"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/health"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/httpapi"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
)

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	*RootOptions
	FramesDir string
}

func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MonitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a capture session",
		Long: `Run one capture session over the frames directory.

Badge and face detections are routed to the access log while the admin
HTTP surface and the gRPC health endpoint are served.  The session ends on
SIGINT/SIGTERM or when the frame source is exhausted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if opts.FramesDir != "" {
				cfg.FramesDir = opts.FramesDir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			opts.Config = cfg
			return runMonitor(ctx, opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.FramesDir, "frames", "", "directory of frames to replay (overrides frames_dir)")
	return cmd
}

func runMonitor(ctx context.Context, opts *MonitorOptions, logOut io.Writer) error {
	cfg := opts.Config
	logger := newLogger(logOut)

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := capture.OpenDir(cfg.FramesDir, cfg.FrameInterval)
	if err != nil {
		return err
	}

	var mirrorOut io.Writer
	if cfg.MirrorPath != "" {
		f, err := openMirror(cfg.MirrorPath)
		if err != nil {
			return err
		}
		defer f.Close()
		mirrorOut = f
	}
	mirror := service.NewMirrorWriter(mirrorOut, service.MirrorConfig{QueueSize: cfg.MirrorQueueSize}, logger, a.metrics)

	bus := service.NewNotificationBus(a.clock)
	router := service.NewDetectionRouter(service.RouterDeps{
		Store:         a.events,
		Bus:           bus,
		Clock:         a.clock,
		Logger:        logger,
		Metrics:       a.metrics,
		Mirror:        mirror,
		ToastDuration: cfg.ToastDuration,
	},
		service.Channel{
			Source: capture.NewBadgeSource(capture.NewQRDecoder()),
			Gate:   service.NewDedupGate(cfg.BadgeWindow),
		},
		service.Channel{
			Source: capture.NewFaceSource(capture.SidecarClassifier{}, cfg.FaceThreshold),
			Gate:   service.NewDedupGate(cfg.FaceWindow),
		},
	)

	hs := health.New(logger)
	mon := service.NewMonitor(router, logger, a.metrics, hs)

	g, gctx := errgroup.WithContext(ctx)
	// The session ending also ends the servers around it.
	runCtx, endRun := context.WithCancel(gctx)
	defer endRun()

	mirror.Start(ctx)
	defer mirror.Stop()

	logger.Printf("session starting frames=%s count=%d", cfg.FramesDir, src.Len())
	g.Go(func() error {
		defer endRun()
		return mon.Run(runCtx, src, capture.NewLogRenderer(logger))
	})

	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(httpapi.Dependencies{
			Logger:  logger,
			Addr:    cfg.HTTPAddr,
			Events:  a.events,
			Toggle:  a.toggle,
			Bus:     bus,
			Clock:   a.clock,
			Metrics: a.metrics,
		})
		g.Go(func() error {
			logger.Printf("listening on %s", cfg.HTTPAddr)
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.GRPCAddr != "" {
		g.Go(func() error { return hs.Serve(cfg.GRPCAddr) })
		g.Go(func() error {
			<-runCtx.Done()
			hs.Stop()
			return nil
		})
	}

	err = g.Wait()
	logger.Printf("session ended dropped_mirror_lines=%d", mirror.Dropped())
	return err
}

func openMirror(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir mirror dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	return f, nil
}
