package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/riftduel/duelsync/internal/client"
	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/influx"
	"github.com/riftduel/duelsync/internal/logging"
	"github.com/riftduel/duelsync/internal/rpc"
	"github.com/riftduel/duelsync/pkg/core"
)

// ClientOptions holds flags for the client command.
type ClientOptions struct {
	*RootOptions
	Participant uint8
	Addr        string
	Frames      uint64
	FrameLag    int
	RenderLag   int
}

// NewClientCommand creates the client command.
func NewClientCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Run a scripted participant against the server",
		Long: `Run one participant's sync loop at the configured frame rate.

The participant orbits the arena centre, picks up its weapon on the first
frame and fires in short bursts. Each frame pushes the local state, pulls the
peer's, replays the local head with the configured frame lag and checks
bullets against both bodies.

Example:
  duelsync client --participant 2 --addr localhost:8080 --frame-lag 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, cmd, opts)
		},
	}

	cmd.Flags().Uint8Var(&opts.Participant, "participant", 0, "participant id, 1 or 2 (overrides client.participant)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "server address (overrides client.serverAddr)")
	cmd.Flags().Uint64Var(&opts.Frames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	cmd.Flags().IntVar(&opts.FrameLag, "frame-lag", 0, "initial frame lag")
	cmd.Flags().IntVar(&opts.RenderLag, "render-lag", 0, "initial render lag")

	return cmd
}

// clientConfig merges flags over the file settings.
func clientConfig(cmd *cobra.Command, opts *ClientOptions) config.ClientConfig {
	cc := config.GetClientConfig()
	if cmd.Flags().Changed("participant") {
		cc.Participant = opts.Participant
	}
	if opts.Addr != "" {
		cc.ServerAddr = opts.Addr
	}
	return cc
}

func runClient(ctx context.Context, cmd *cobra.Command, opts *ClientOptions) error {
	cc := clientConfig(cmd, opts)
	id := core.ParticipantID(cc.Participant)
	if err := id.Validate(); err != nil {
		return fmt.Errorf("participant %d: %w", cc.Participant, err)
	}

	rt, err := newRuntime(fmt.Sprintf("client%d", id))
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(flushCtx)
	}()
	logger := rt.Logger()
	ctx = logging.WithParticipant(ctx, uint8(id))

	conn, err := rpc.Dial(ctx, cc.ServerAddr,
		rpc.WithLogger(logger),
		rpc.WithReconnect(cc.MaxReconnect, cc.ReconnectDelay, 30*time.Second),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	loopOpts := []client.Option{client.WithLogger(logger)}
	if ic := config.GetInfluxConfig(); ic.Enabled {
		backup := filepath.Join(config.GetLoggingConfig().Dir, fmt.Sprintf("client%d_frames.lp.gz", id))
		im := influx.NewManager(ic, rt.zlog, backup)
		if err := im.Connect(ctx); err != nil {
			logger.WarnContext(ctx, "Frame telemetry disabled", "error", err)
		} else {
			defer im.Close()
			loopOpts = append(loopOpts, client.WithSink(influx.NewFrameSink(im, id)))
		}
	}

	loop, err := client.New(client.Config{
		ID:             id,
		CallTimeout:    cc.CallTimeout,
		ReplayCapacity: cc.ReplayCapacity,
	}, conn, loopOpts...)
	if err != nil {
		return err
	}
	loop.Lag().SetFrameLag(opts.FrameLag)
	loop.Lag().SetRenderLag(opts.RenderLag)

	logger.InfoContext(ctx, "Client started", "server", cc.ServerAddr, "frameRate", cc.FrameRate,
		"frameLag", loop.Lag().FrameLag(), "renderLag", loop.Lag().RenderLag())

	err = drive(ctx, loop, newOrbit(id), cc.FrameRate, opts.Frames)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.InfoContext(ctx, "Client stopped", "lateResponses", conn.LateResponses())
	return err
}

// drive steps the loop at frameRate until ctx ends or limit frames have run.
func drive(ctx context.Context, loop *client.SyncLoop, script orbit, frameRate int, limit uint64) error {
	if frameRate <= 0 {
		frameRate = 90
	}
	ticker := time.NewTicker(time.Second / time.Duration(frameRate))
	defer ticker.Stop()

	for n := uint64(0); limit == 0 || n < limit; n++ {
		loop.Step(ctx, script.At(n))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
