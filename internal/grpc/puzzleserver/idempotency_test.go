package puzzleserver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
)

func TestIdempotencyManager(t *testing.T) {
	im := NewIdempotencyManager()
	resp, err := structpb.NewStruct(map[string]any{"reward": -1.0})
	require.NoError(t, err)

	assert.Nil(t, im.Check("env-1", "k"))

	im.Store("env-1", "k", resp)
	cached := im.Check("env-1", "k")
	require.NotNil(t, cached)
	assert.True(t, proto.Equal(resp, cached))

	// keys are scoped per environment
	assert.Nil(t, im.Check("env-2", "k"))

	// empty keys are never cached
	im.Store("env-1", "", resp)
	assert.Nil(t, im.Check("env-1", ""))
	assert.Equal(t, 1, im.Size())

	im.Forget("env-1")
	assert.Nil(t, im.Check("env-1", "k"))
	assert.Equal(t, 0, im.Size())
}

func TestIdempotencyManager_Expiry(t *testing.T) {
	im := NewIdempotencyManager()
	now := time.Now()
	im.now = func() time.Time { return now }

	im.Store("env-1", "k", &structpb.Struct{})
	now = now.Add(idempotencyTTL + time.Minute)
	assert.Nil(t, im.Check("env-1", "k"))
}

func TestIdempotencyManager_CleanupWhenLarge(t *testing.T) {
	im := NewIdempotencyManager()
	now := time.Now()
	im.now = func() time.Time { return now }

	for i := 0; i < idempotencyMaxCache; i++ {
		im.Store("old", fmt.Sprintf("k-%d", i), &structpb.Struct{})
	}
	now = now.Add(idempotencyTTL + time.Minute)
	im.Store("new", "k", &structpb.Struct{})
	assert.Equal(t, 1, im.Size())
}

func TestIdempotencyManager_EvictsOldestOverCap(t *testing.T) {
	im := NewIdempotencyManager()
	now := time.Now()
	im.now = func() time.Time { return now }

	for i := 0; i < idempotencyMaxCache+5; i++ {
		now = now.Add(time.Second)
		im.Store("env-1", fmt.Sprintf("k-%d", i), &structpb.Struct{})
	}
	assert.Equal(t, idempotencyMaxCache, im.Size())
	for i := 0; i < 5; i++ {
		assert.Nil(t, im.Check("env-1", fmt.Sprintf("k-%d", i)))
	}
	assert.NotNil(t, im.Check("env-1", "k-5"))
	assert.NotNil(t, im.Check("env-1", fmt.Sprintf("k-%d", idempotencyMaxCache+4)))
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))

	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: x", session.ErrNotFound), codes.NotFound},
		{core.ErrUnknownEnvironment, codes.NotFound},
		{session.ErrAtCapacity, codes.ResourceExhausted},
		{session.ErrStopped, codes.Unavailable},
		{fmt.Errorf("%w: bad", core.ErrInvalidAction), codes.InvalidArgument},
		{core.ErrInvalidBoardDescription, codes.InvalidArgument},
		{ErrMalformedRequest, codes.InvalidArgument},
		{fmt.Errorf("%w: \"goal\"", env.ErrUnsupportedRenderMode), codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
	}
	for _, tt := range tests {
		st, ok := status.FromError(toStatus(tt.err))
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code(), tt.err.Error())
	}
}
