package puzzleserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestStepRequestFromStruct_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"EnvIDNotString", map[string]any{"env_id": 3.0}},
		{"ActionNotList", map[string]any{"env_id": "e", "action": "up"}},
		{"ActionFractional", map[string]any{"env_id": "e", "action": []any{1.5}}},
		{"KeyNotString", map[string]any{"env_id": "e", "action": []any{0.0}, "idempotency_key": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)
			_, err = stepRequestFromStruct(s)
			assert.ErrorIs(t, err, ErrMalformedRequest)
		})
	}
}

func TestResetRequestFromStruct_OptionalSeed(t *testing.T) {
	s, err := ResetRequest{EnvID: "e"}.toStruct()
	require.NoError(t, err)
	req, err := resetRequestFromStruct(s)
	require.NoError(t, err)
	assert.Nil(t, req.Seed)
	assert.Nil(t, req.Tiles)

	s, err = ResetRequest{EnvID: "e", Seed: seed(7), Tiles: []int{1, 0, 2, 3}}.toStruct()
	require.NoError(t, err)
	req, err = resetRequestFromStruct(s)
	require.NoError(t, err)
	require.NotNil(t, req.Seed)
	assert.Equal(t, int64(7), *req.Seed)
	assert.Equal(t, []int{1, 0, 2, 3}, req.Tiles)
}

func TestGetInfo_RestoresIntegers(t *testing.T) {
	info, err := getInfo(map[string]any{"info": map[string]any{
		"steps": 3.0,
		"moved": true,
		"ratio": 0.5,
		"none":  nil,
	}}, "info")
	require.NoError(t, err)
	assert.Equal(t, 3, info["steps"])
	assert.Equal(t, true, info["moved"])
	assert.Equal(t, 0.5, info["ratio"])
	assert.Nil(t, info["none"])
}
