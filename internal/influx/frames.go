package influx

import (
	"strconv"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/riftduel/duelsync/internal/client"
	"github.com/riftduel/duelsync/pkg/core"
)

// FrameMeasurement names the per-frame telemetry measurement.
const FrameMeasurement = "client_frame"

// FramePoint converts one client frame into a line-protocol point.
func FramePoint(id core.ParticipantID, f client.Frame, at time.Time) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(FrameMeasurement).
		AddTag("participant", strconv.Itoa(int(id))).
		AddField("frame", int64(f.Number)).
		AddField("frameLag", f.FrameLag).
		AddField("renderLag", f.RenderLag).
		AddField("renderDelayMs", float64(f.RenderDelay.Microseconds())/1000).
		AddField("callLatencyMs", float64(f.CallLatency.Microseconds())/1000).
		AddField("peerStale", f.PeerStale).
		AddField("pushFailed", f.PushErr != nil).
		AddField("localDead", f.Local.Dead).
		AddField("peerDead", f.Peer.Dead).
		AddField("hitPeer", f.HitPeer).
		AddField("killed", f.Killed).
		AddField("localBullet", f.LocalBullet.Active).
		AddField("peerBullet", f.PeerBullet.Active).
		AddField("events", len(f.Events)).
		SetTime(at)
	return point
}

// FrameSink streams client frames to InfluxDB. It implements client.Sink.
type FrameSink struct {
	manager *Manager
	id      core.ParticipantID
	now     func() time.Time
}

// NewFrameSink creates a sink writing frames for participant id.
func NewFrameSink(m *Manager, id core.ParticipantID) *FrameSink {
	return &FrameSink{manager: m, id: id, now: time.Now}
}

// WriteFrame queues the frame's point. Write errors are logged, never returned to the loop.
func (s *FrameSink) WriteFrame(f client.Frame) {
	if err := s.manager.WritePoint(FramePoint(s.id, f, s.now())); err != nil {
		s.manager.Logger.Warn().Err(err).Uint64("frame", f.Number).Msg("Dropping frame telemetry")
	}
}
