// Package wire defines the on-the-wire schema shared by the replication server and its clients.
//
// PlayerState is encoded as a msgpack map keyed by field name. Field order is the declaration
// order below and is part of the protocol: firing, dead, pickedUp, fireJustEnded, hand, head,
// viewDir, shootDir. Quaternions are always written component-wise as x, y, z, w.
package wire

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/pkg/core"
)

// Vec3 is a three-component vector.
type Vec3 struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
	Z float32 `msgpack:"z" json:"z"`
}

// Quat is a quaternion serialized as x, y, z, w.
type Quat struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
	Z float32 `msgpack:"z" json:"z"`
	W float32 `msgpack:"w" json:"w"`
}

// Transform is a position plus rotation.
type Transform struct {
	Pos Vec3 `msgpack:"pos" json:"pos"`
	Rot Quat `msgpack:"rot" json:"rot"`
}

// PlayerState is the fixed wire schema for core.PlayerState.
type PlayerState struct {
	Firing        bool      `msgpack:"firing" json:"firing"`
	Dead          bool      `msgpack:"dead" json:"dead"`
	PickedUp      bool      `msgpack:"pickedUp" json:"pickedUp"`
	FireJustEnded bool      `msgpack:"fireJustEnded" json:"fireJustEnded"`
	Hand          Transform `msgpack:"hand" json:"hand"`
	Head          Transform `msgpack:"head" json:"head"`
	ViewDir       Vec3      `msgpack:"viewDir" json:"viewDir"`
	ShootDir      Vec3      `msgpack:"shootDir" json:"shootDir"`
}

// schema lists the keys every PlayerState payload must carry. A nil value marks a leaf.
type schema map[string]schema

var (
	vec3Schema      = schema{"x": nil, "y": nil, "z": nil}
	quatSchema      = schema{"x": nil, "y": nil, "z": nil, "w": nil}
	transformSchema = schema{"pos": vec3Schema, "rot": quatSchema}

	stateSchema = schema{
		"firing":        nil,
		"dead":          nil,
		"pickedUp":      nil,
		"fireJustEnded": nil,
		"hand":          transformSchema,
		"head":          transformSchema,
		"viewDir":       vec3Schema,
		"shootDir":      vec3Schema,
	}
)

func fromVec3(v mgl32.Vec3) Vec3 {
	return Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func (v Vec3) core() mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

func fromQuat(q mgl32.Quat) Quat {
	return Quat{X: q.V.X(), Y: q.V.Y(), Z: q.V.Z(), W: q.W}
}

func (q Quat) core() mgl32.Quat {
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

func fromPose(p core.Pose) Transform {
	return Transform{Pos: fromVec3(p.Pos), Rot: fromQuat(p.Rot)}
}

func (t Transform) core() core.Pose {
	return core.Pose{Pos: t.Pos.core(), Rot: t.Rot.core()}
}

// FromCore converts a domain state to its wire form.
func FromCore(s core.PlayerState) PlayerState {
	return PlayerState{
		Firing:        s.Firing,
		Dead:          s.Dead,
		PickedUp:      s.PickedUpWeapon,
		FireJustEnded: s.FireJustEnded,
		Hand:          fromPose(s.Hand),
		Head:          fromPose(s.Head),
		ViewDir:       fromVec3(s.ViewDir),
		ShootDir:      fromVec3(s.ShootDir),
	}
}

// Core converts the wire form back to a domain state.
func (w PlayerState) Core() core.PlayerState {
	return core.PlayerState{
		Firing:         w.Firing,
		Dead:           w.Dead,
		PickedUpWeapon: w.PickedUp,
		FireJustEnded:  w.FireJustEnded,
		Hand:           w.Hand.core(),
		Head:           w.Head.core(),
		ViewDir:        w.ViewDir.core(),
		ShootDir:       w.ShootDir.core(),
	}
}

// EncodeState serializes s as a msgpack map.
func EncodeState(s core.PlayerState) ([]byte, error) {
	b, err := msgpack.Marshal(FromCore(s))
	if err != nil {
		return nil, fmt.Errorf("encode player state: %w", err)
	}
	return b, nil
}

// DecodeState parses a msgpack map produced by EncodeState or a compatible peer.
// Any missing field yields core.ErrSerializationMismatch.
func DecodeState(b []byte) (core.PlayerState, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(b, &raw); err != nil {
		return core.PlayerState{}, fmt.Errorf("decode player state: %v: %w", err, core.ErrSerializationMismatch)
	}
	if err := checkFields(raw, stateSchema, ""); err != nil {
		return core.PlayerState{}, err
	}

	var w PlayerState
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return core.PlayerState{}, fmt.Errorf("decode player state: %v: %w", err, core.ErrSerializationMismatch)
	}
	return w.Core(), nil
}

func checkFields(v any, s schema, path string) error {
	fields, ok := asStringMap(v)
	if !ok {
		return fmt.Errorf("field %q is not a map: %w", path, core.ErrSerializationMismatch)
	}
	for key, sub := range s {
		child, present := fields[key]
		name := key
		if path != "" {
			name = path + "." + key
		}
		if !present {
			return fmt.Errorf("missing field %q: %w", name, core.ErrSerializationMismatch)
		}
		if sub != nil {
			if err := checkFields(child, sub, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}
