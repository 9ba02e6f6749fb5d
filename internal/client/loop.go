// Package client drives one participant's per-frame synchronisation with the replication server.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftduel/duelsync/internal/collision"
	"github.com/riftduel/duelsync/internal/input"
	"github.com/riftduel/duelsync/internal/replay"
	"github.com/riftduel/duelsync/pkg/core"
)

// DefaultCallTimeout bounds each push and pull so a slow server never stalls a frame.
const DefaultCallTimeout = 20 * time.Millisecond

// Replicator is the server surface the loop talks to.
type Replicator interface {
	Push(ctx context.Context, id core.ParticipantID, state core.PlayerState) error
	Pull(ctx context.Context, id core.ParticipantID) (core.PlayerState, error)
	Trigger(ctx context.Context, id core.ParticipantID, event core.Event) error
}

// Sink receives every completed frame. Implementations must not block.
type Sink interface {
	WriteFrame(f Frame)
}

// Config holds the loop settings.
type Config struct {
	ID             core.ParticipantID
	CallTimeout    time.Duration
	ReplayCapacity int
	Body           collision.BoxTemplate
	BulletBox      collision.BoxTemplate
}

// DefaultBody is a head-and-torso sized box centred on the head pose.
func DefaultBody() collision.BoxTemplate {
	return collision.TemplateFromMinMax(mgl32.Vec3{-0.25, -0.9, -0.2}, mgl32.Vec3{0.25, 0.2, 0.2})
}

// DefaultBulletBox is the bullet's collision box.
func DefaultBulletBox() collision.BoxTemplate {
	return collision.TemplateFromMinMax(mgl32.Vec3{-0.02, -0.02, -0.02}, mgl32.Vec3{0.02, 0.02, 0.02})
}

// FrameInput is what the pose producer hands over each frame.
type FrameInput struct {
	Frame   uint64
	Head    core.Pose
	Hand    core.Pose
	Buttons input.Buttons
	PickUp  bool
}

// Frame is the outcome of one Step.
type Frame struct {
	Number uint64
	Local  core.PlayerState
	Peer   core.PlayerState

	// PeerStale is set when the pull failed and Peer is the last good state.
	PeerStale bool
	PushErr   error
	PullErr   error

	RenderHead  core.PoseSample
	FrameLag    int
	RenderLag   int
	RenderDelay time.Duration

	LocalBullet Bullet
	PeerBullet  Bullet

	// HitPeer is set when the local bullet struck the peer this frame.
	HitPeer bool
	// Killed is set when the peer's bullet struck the local body this frame.
	Killed bool
	// Events lists the discrete events announced to the server this frame.
	Events []core.Event

	CallLatency time.Duration
}

// SyncLoop is single-threaded: call Step from the frame loop only.
type SyncLoop struct {
	cfg    Config
	remote Replicator
	peerID core.ParticipantID
	logger *slog.Logger
	sink   Sink

	buttons input.Controller
	history *replay.Buffer
	lag     *replay.LagControl
	det     collision.Detector

	local      core.PlayerState
	peer       core.PlayerState
	peerFiring bool
	events     []core.Event

	localBullet Bullet
	peerBullet  Bullet
	localBody   *collision.Body
	peerBody    *collision.Body
	bulletBody  *collision.Body
}

// Option configures a SyncLoop.
type Option func(*SyncLoop)

// WithLogger sets the loop logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SyncLoop) { s.logger = l }
}

// WithSink streams every frame to sink.
func WithSink(sink Sink) Option {
	return func(s *SyncLoop) { s.sink = sink }
}

// New validates cfg and builds a loop. An invalid participant id is rejected here so it never reaches the wire.
func New(cfg Config, remote Replicator, opts ...Option) (*SyncLoop, error) {
	peer, err := core.PeerOf(cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("sync loop: %w", err)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.ReplayCapacity == 0 {
		cfg.ReplayCapacity = replay.DefaultCapacity
	}
	if cfg.Body == (collision.BoxTemplate{}) {
		cfg.Body = DefaultBody()
	}
	if cfg.BulletBox == (collision.BoxTemplate{}) {
		cfg.BulletBox = DefaultBulletBox()
	}

	history, err := replay.New(cfg.ReplayCapacity)
	if err != nil {
		return nil, fmt.Errorf("sync loop: %w", err)
	}

	s := &SyncLoop{
		cfg:        cfg,
		remote:     remote,
		peerID:     peer,
		logger:     slog.Default(),
		history:    history,
		lag:        replay.NewLagControl(cfg.ReplayCapacity),
		localBody:  collision.NewBody(cfg.Body),
		peerBody:   collision.NewBody(cfg.Body),
		bulletBody: collision.NewBody(cfg.BulletBox),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lag exposes the latency knobs, for callers that set them directly.
func (s *SyncLoop) Lag() *replay.LagControl {
	return s.lag
}

// Step runs one frame. It never fails: network and buffer faults are folded into the returned Frame.
func (s *SyncLoop) Step(ctx context.Context, in FrameInput) Frame {
	edges := s.buttons.Update(in.Buttons)
	s.applyLagEdges(edges)

	s.buildLocal(in, edges.Fire)

	out := Frame{Number: in.Frame}
	start := time.Now()

	out.PushErr = s.call(ctx, func(ctx context.Context) error {
		return s.remote.Push(ctx, s.cfg.ID, s.local)
	})
	if out.PushErr != nil {
		s.logger.DebugContext(ctx, "push failed", "frame", in.Frame, "error", out.PushErr)
	}

	var pulled core.PlayerState
	out.PullErr = s.call(ctx, func(ctx context.Context) error {
		var err error
		pulled, err = s.remote.Pull(ctx, s.cfg.ID)
		return err
	})
	out.CallLatency = time.Since(start)
	if out.PullErr != nil {
		out.PeerStale = true
		s.logger.DebugContext(ctx, "pull failed, reusing last peer state", "frame", in.Frame, "error", out.PullErr)
	} else {
		s.peer = pulled
	}

	s.history.Push(core.PoseSample{Frame: in.Frame, Pose: in.Head})
	out.RenderHead = s.history.Sample(s.lag.FrameLag())

	s.advanceBullets()
	out.HitPeer, out.Killed = s.collide()
	out.Events = s.announce(ctx)

	out.Local = s.local
	out.Peer = s.peer
	out.FrameLag = s.lag.FrameLag()
	out.RenderLag = s.lag.RenderLag()
	out.RenderDelay = s.lag.RenderDelay()
	out.LocalBullet = s.localBullet
	out.PeerBullet = s.peerBullet

	if s.sink != nil {
		s.sink.WriteFrame(out)
	}
	return out
}

func (s *SyncLoop) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, core.ErrConnectionTimeout) {
		err = fmt.Errorf("%v: %w", err, core.ErrConnectionTimeout)
	}
	return err
}

func (s *SyncLoop) applyLagEdges(e input.Edges) {
	if e.LeftTrigger == input.Pressed {
		s.lag.DecFrameLag()
	}
	if e.RightTrigger == input.Pressed {
		s.lag.IncFrameLag()
	}
	if e.LeftGrip == input.Pressed {
		s.lag.DecRenderLag()
	}
	if e.RightGrip == input.Pressed {
		s.lag.IncRenderLag()
	}
}

// buildLocal refreshes the pose and flags pushed this frame. Dead is sticky.
func (s *SyncLoop) buildLocal(in FrameInput, fire input.Edge) {
	st := &s.local
	st.Head = in.Head
	st.Hand = in.Hand
	st.ViewDir = in.Head.Forward()
	st.ShootDir = in.Hand.Forward()
	if in.PickUp && !st.PickedUpWeapon {
		st.PickedUpWeapon = true
		s.events = append(s.events, core.EventPickup)
	}

	st.FireJustEnded = false
	switch {
	case st.Dead:
		st.Firing = false
	case fire == input.Pressed:
		st.Firing = true
		s.localBullet = SpawnBullet(st.Hand.Pos, st.ShootDir)
		s.events = append(s.events, core.EventFire)
	case fire == input.Released:
		st.Firing = false
		st.FireJustEnded = true
		s.events = append(s.events, core.EventFireEnd)
	}
}

func (s *SyncLoop) advanceBullets() {
	if s.peer.Firing && !s.peerFiring && !s.peer.Dead {
		s.peerBullet = SpawnBullet(s.peer.Hand.Pos, s.peer.ShootDir)
	}
	s.peerFiring = s.peer.Firing

	s.localBullet.Advance()
	s.peerBullet.Advance()
}

// collide tests both directions: the local bullet against the peer and the peer's bullet against us.
func (s *SyncLoop) collide() (hitPeer, killed bool) {
	s.localBody.World = s.local.Head.Mat4()
	s.peerBody.World = s.peer.Head.Mat4()

	if s.localBullet.Active {
		s.bulletBody.World = s.localBullet.World()
		if s.det.Test(s.bulletBody, s.peerBody) {
			hitPeer = true
			s.localBullet.Active = false
		}
	}

	if s.peerBullet.Active {
		s.bulletBody.World = s.peerBullet.World()
		if s.det.Test(s.bulletBody, s.localBody) {
			killed = true
			s.peerBullet.Active = false
			if !s.local.Dead {
				s.logger.Info("local participant hit", "participant", s.cfg.ID)
				s.events = append(s.events, core.EventDeath)
			}
			s.local.Dead = true
		}
	}
	return hitPeer, killed
}

// announce sends this frame's events as triggers so the recorder sees them as discrete records.
// A failed trigger is dropped; the flag still reaches the server with the next push.
func (s *SyncLoop) announce(ctx context.Context) []core.Event {
	if len(s.events) == 0 {
		return nil
	}
	sent := s.events
	s.events = nil
	for _, ev := range sent {
		ev := ev
		err := s.call(ctx, func(ctx context.Context) error {
			return s.remote.Trigger(ctx, s.cfg.ID, ev)
		})
		if err != nil {
			s.logger.DebugContext(ctx, "trigger failed", "event", ev, "error", err)
		}
	}
	return sent
}
