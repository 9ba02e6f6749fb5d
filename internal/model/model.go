package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/riftduel/duelsync/pkg/core"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct here that maps to a recorder table
var DatabaseModels = []interface{}{
	&DuelSession{},
	&StateSample{},
	&EventRecord{},
	&RecorderPerformance{},
}

////////////////////////
// RECORDING MODELS
////////////////////////

// DuelSession is one run of the replication server
type DuelSession struct {
	gorm.Model
	SessionID string    `json:"sessionId" gorm:"size:36;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:127"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
}

func (*DuelSession) TableName() string {
	return "duel_sessions"
}

// StateSample is one accepted push
type StateSample struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time           time.Time      `json:"time" gorm:"index:idx_statesample_time"`
	SessionID      uint           `json:"sessionId" gorm:"index:idx_statesample_session_id"`
	Session        DuelSession    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Participant    uint8          `json:"participant" gorm:"index:idx_statesample_participant"`
	Firing         bool           `json:"firing"`
	Dead           bool           `json:"dead"`
	PickedUpWeapon bool           `json:"pickedUp"`
	FireJustEnded  bool           `json:"fireJustEnded"`
	HeadX          float32        `json:"headX"`
	HeadY          float32        `json:"headY"`
	HeadZ          float32        `json:"headZ"`
	Hand           datatypes.JSON `json:"hand"`
	Head           datatypes.JSON `json:"head"`
	ViewDir        datatypes.JSON `json:"viewDir"`
	ShootDir       datatypes.JSON `json:"shootDir"`
}

func (*StateSample) TableName() string {
	return "state_samples"
}

// EventRecord is one accepted trigger together with the slot state it produced
type EventRecord struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement"`
	Time        time.Time      `json:"time" gorm:"index:idx_eventrecord_time"`
	SessionID   uint           `json:"sessionId" gorm:"index:idx_eventrecord_session_id"`
	Session     DuelSession    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Participant uint8          `json:"participant"`
	Event       string         `json:"event" gorm:"size:32"`
	State       datatypes.JSON `json:"state"`
}

func (*EventRecord) TableName() string {
	return "event_records"
}

// RecorderPerformance is a periodic snapshot of the recorder pipeline
type RecorderPerformance struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement"`
	Time                time.Time `json:"time" gorm:"index:idx_recorderperf_time"`
	SessionID           uint      `json:"sessionId"`
	QueueLength         int       `json:"queueLength"`
	Dropped             uint64    `json:"dropped"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*RecorderPerformance) TableName() string {
	return "recorder_performances"
}

////////////////////////
// JSON PAYLOADS
////////////////////////

// Vec3JSON is a position or direction as [x, y, z]
type Vec3JSON [3]float32

// PoseJSON is a pose with its rotation as [x, y, z, w]
type PoseJSON struct {
	Pos Vec3JSON   `json:"pos"`
	Rot [4]float32 `json:"rot"`
}

// StateJSON is the JSON form of a participant state
type StateJSON struct {
	Firing         bool     `json:"firing"`
	Dead           bool     `json:"dead"`
	PickedUpWeapon bool     `json:"pickedUp"`
	FireJustEnded  bool     `json:"fireJustEnded"`
	Hand           PoseJSON `json:"hand"`
	Head           PoseJSON `json:"head"`
	ViewDir        Vec3JSON `json:"viewDir"`
	ShootDir       Vec3JSON `json:"shootDir"`
}

// NewPoseJSON converts a pose to its JSON form.
func NewPoseJSON(p core.Pose) PoseJSON {
	return PoseJSON{
		Pos: Vec3JSON(p.Pos),
		Rot: [4]float32{p.Rot.V[0], p.Rot.V[1], p.Rot.V[2], p.Rot.W},
	}
}

// Pose converts back to a core pose.
func (p PoseJSON) Pose() core.Pose {
	return core.Pose{
		Pos: mgl32.Vec3(p.Pos),
		Rot: mgl32.Quat{W: p.Rot[3], V: mgl32.Vec3{p.Rot[0], p.Rot[1], p.Rot[2]}},
	}
}

// NewStateJSON converts a participant state to its JSON form.
func NewStateJSON(s core.PlayerState) StateJSON {
	return StateJSON{
		Firing:         s.Firing,
		Dead:           s.Dead,
		PickedUpWeapon: s.PickedUpWeapon,
		FireJustEnded:  s.FireJustEnded,
		Hand:           NewPoseJSON(s.Hand),
		Head:           NewPoseJSON(s.Head),
		ViewDir:        Vec3JSON(s.ViewDir),
		ShootDir:       Vec3JSON(s.ShootDir),
	}
}

// State converts back to a core participant state.
func (s StateJSON) State() core.PlayerState {
	return core.PlayerState{
		Firing:         s.Firing,
		Dead:           s.Dead,
		PickedUpWeapon: s.PickedUpWeapon,
		FireJustEnded:  s.FireJustEnded,
		Hand:           s.Hand.Pose(),
		Head:           s.Head.Pose(),
		ViewDir:        mgl32.Vec3(s.ViewDir),
		ShootDir:       mgl32.Vec3(s.ShootDir),
	}
}

////////////////////////
// CONVERSION
////////////////////////

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// NewStateSample converts a state record into a row for the given session.
func NewStateSample(sessionID uint, r core.Record) (StateSample, error) {
	s := r.State
	row := StateSample{
		Time:           r.Time,
		SessionID:      sessionID,
		Participant:    uint8(r.Participant),
		Firing:         s.Firing,
		Dead:           s.Dead,
		PickedUpWeapon: s.PickedUpWeapon,
		FireJustEnded:  s.FireJustEnded,
		HeadX:          s.Head.Pos.X(),
		HeadY:          s.Head.Pos.Y(),
		HeadZ:          s.Head.Pos.Z(),
	}

	var err error
	if row.Hand, err = toJSON(NewPoseJSON(s.Hand)); err != nil {
		return row, fmt.Errorf("hand: %w", err)
	}
	if row.Head, err = toJSON(NewPoseJSON(s.Head)); err != nil {
		return row, fmt.Errorf("head: %w", err)
	}
	if row.ViewDir, err = toJSON(Vec3JSON(s.ViewDir)); err != nil {
		return row, fmt.Errorf("viewDir: %w", err)
	}
	if row.ShootDir, err = toJSON(Vec3JSON(s.ShootDir)); err != nil {
		return row, fmt.Errorf("shootDir: %w", err)
	}
	return row, nil
}

// NewEventRecord converts an event record into a row for the given session.
func NewEventRecord(sessionID uint, r core.Record) (EventRecord, error) {
	state, err := toJSON(NewStateJSON(r.State))
	if err != nil {
		return EventRecord{}, fmt.Errorf("state: %w", err)
	}
	return EventRecord{
		Time:        r.Time,
		SessionID:   sessionID,
		Participant: uint8(r.Participant),
		Event:       string(r.Event),
		State:       state,
	}, nil
}
