package wire

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/pkg/core"
)

func fixtureState() core.PlayerState {
	return core.PlayerState{
		Firing:         true,
		PickedUpWeapon: true,
		Hand:           core.Pose{Pos: mgl32.Vec3{1, 0, 0}, Rot: mgl32.QuatIdent()},
		Head:           core.Pose{Pos: mgl32.Vec3{0, 1.7, 0.2}, Rot: mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})},
		ViewDir:        mgl32.Vec3{0, 0, -1},
		ShootDir:       mgl32.Vec3{0.5, 0, -0.5},
	}
}

func TestStateRoundTrip(t *testing.T) {
	halfTurn := mgl32.QuatRotate(mgl32.DegToRad(180), mgl32.Vec3{0, 1, 0})

	tests := []struct {
		name  string
		state core.PlayerState
	}{
		{"zero value", core.PlayerState{}},
		{"fixture", fixtureState()},
		{"identity rotation", core.PlayerState{
			Hand: core.Pose{Rot: mgl32.QuatIdent()},
			Head: core.Pose{Rot: mgl32.QuatIdent()},
		}},
		{"half turn rotation", core.PlayerState{
			Dead:          true,
			FireJustEnded: true,
			Hand:          core.Pose{Pos: mgl32.Vec3{-3, 2, 9}, Rot: halfTurn},
			Head:          core.Pose{Rot: mgl32.Quat{W: 0, V: mgl32.Vec3{1, 0, 0}}},
		}},
		{"all flags", core.PlayerState{Firing: true, Dead: true, PickedUpWeapon: true, FireJustEnded: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeState(tt.state)
			require.NoError(t, err)

			got, err := DecodeState(b)
			require.NoError(t, err)
			assert.Equal(t, tt.state, got)
		})
	}
}

func TestStateFieldOrder(t *testing.T) {
	b, err := EncodeState(fixtureState())
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeMapLen()
	require.NoError(t, err)

	var keys []string
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		require.NoError(t, err)
		keys = append(keys, key)
		require.NoError(t, dec.Skip())
	}

	assert.Equal(t, []string{
		"firing", "dead", "pickedUp", "fireJustEnded",
		"hand", "head", "viewDir", "shootDir",
	}, keys)
}

func TestQuaternionComponentOrder(t *testing.T) {
	b, err := msgpack.Marshal(Quat{X: 1, Y: 2, Z: 3, W: 4})
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeMapLen()
	require.NoError(t, err)
	require.Equal(t, 4, n)

	var keys []string
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		require.NoError(t, err)
		keys = append(keys, key)
		require.NoError(t, dec.Skip())
	}
	assert.Equal(t, []string{"x", "y", "z", "w"}, keys)
}

func TestDecodeState_MissingField(t *testing.T) {
	full := map[string]any{
		"firing":        true,
		"dead":          false,
		"pickedUp":      false,
		"fireJustEnded": false,
		"hand":          map[string]any{"pos": map[string]any{"x": 1, "y": 2, "z": 3}, "rot": map[string]any{"x": 0, "y": 0, "z": 0, "w": 1}},
		"head":          map[string]any{"pos": map[string]any{"x": 1, "y": 2, "z": 3}, "rot": map[string]any{"x": 0, "y": 0, "z": 0, "w": 1}},
		"viewDir":       map[string]any{"x": 0, "y": 0, "z": -1},
		"shootDir":      map[string]any{"x": 0, "y": 0, "z": -1},
	}

	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"top level flag", func(m map[string]any) { delete(m, "dead") }},
		{"nested transform", func(m map[string]any) { delete(m, "head") }},
		{"quaternion component", func(m map[string]any) {
			m["hand"] = map[string]any{"pos": map[string]any{"x": 1, "y": 2, "z": 3}, "rot": map[string]any{"x": 0, "y": 0, "z": 0}}
		}},
		{"vector component", func(m map[string]any) { m["shootDir"] = map[string]any{"x": 0, "z": -1} }},
		{"wrong shape", func(m map[string]any) { m["viewDir"] = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := make(map[string]any, len(full))
			for k, v := range full {
				m[k] = v
			}
			tt.mutate(m)

			b, err := msgpack.Marshal(m)
			require.NoError(t, err)

			_, err = DecodeState(b)
			assert.ErrorIs(t, err, core.ErrSerializationMismatch)
		})
	}
}

func TestDecodeState_Garbage(t *testing.T) {
	_, err := DecodeState([]byte{0xc1, 0x00})
	assert.ErrorIs(t, err, core.ErrSerializationMismatch)

	b, err := msgpack.Marshal("not a map")
	require.NoError(t, err)
	_, err = DecodeState(b)
	assert.ErrorIs(t, err, core.ErrSerializationMismatch)
}
