package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/testutil"
)

const nearWinBoard = testutil.NearWinBoard

func TestManager_CreateGetClose(t *testing.T) {
	m := NewManager(Config{MaxEnvs: 4})
	defer m.Stop()

	inst, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	require.NoError(t, err)
	assert.Equal(t, env.SlidingPuzzleID, inst.Name())
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(inst.ID())
	require.NoError(t, err)
	assert.Same(t, inst, got)

	require.NoError(t, m.Close(inst.ID()))
	assert.Equal(t, 0, m.Count())

	_, err = m.Get(inst.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Close(inst.ID()), ErrNotFound)
}

func TestManager_UnknownEnvironment(t *testing.T) {
	m := NewManager(Config{})
	defer m.Stop()

	_, err := m.Create("Missing-v0", env.Options{})
	assert.ErrorIs(t, err, core.ErrUnknownEnvironment)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, DefaultMaxEnvs, m.MaxEnvs())
}

func TestManager_Capacity(t *testing.T) {
	m := NewManager(Config{MaxEnvs: 2})
	defer m.Stop()

	for i := 0; i < 2; i++ {
		_, err := m.Create(env.RushHourID, env.Options{Board: nearWinBoard})
		require.NoError(t, err)
	}
	_, err := m.Create(env.RushHourID, env.Options{Board: nearWinBoard})
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.Equal(t, 2, m.Count())
}

func TestManager_ConcurrentCreateRespectsCapacity(t *testing.T) {
	m := NewManager(Config{MaxEnvs: 5})
	defer m.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Create(env.RushHourID, env.Options{Board: nearWinBoard})
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, m.Count())
}

func TestManager_DuplicateID(t *testing.T) {
	m := NewManager(Config{})
	defer m.Stop()

	_, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8, EnvID: "dup"})
	require.NoError(t, err)
	_, err = m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8, EnvID: "dup"})
	assert.Error(t, err)
}

func TestManager_ListReflectsEpisodeState(t *testing.T) {
	m := NewManager(Config{})
	defer m.Stop()

	first, err := m.Create(env.RushHourID, env.Options{Board: nearWinBoard, EnvID: "a"})
	require.NoError(t, err)
	second, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8, EnvID: "b"})
	require.NoError(t, err)

	err = first.Do(func(e env.Environment) error {
		_, err := e.Step(context.Background(), []int{0, int(core.Right)})
		return err
	})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	byID := map[string]Summary{}
	for _, s := range list {
		byID[s.ID] = s
	}
	assert.Equal(t, 1, byID["a"].Steps)
	assert.True(t, byID["a"].Terminated)
	assert.False(t, byID["a"].AwaitingReset())

	// sliding environments stay closed until their first reset
	assert.Equal(t, env.SlidingPuzzleID, byID["b"].Name)
	assert.True(t, byID["b"].Terminated)
	assert.True(t, byID["b"].Truncated)
	assert.True(t, byID["b"].AwaitingReset())

	err = second.Do(func(e env.Environment) error {
		_, _, err := e.Reset(context.Background(), env.ResetOptions{})
		return err
	})
	require.NoError(t, err)

	for _, s := range m.List() {
		if s.ID == "b" {
			assert.False(t, s.Terminated)
			assert.False(t, s.Truncated)
			assert.False(t, s.AwaitingReset())
		}
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := NewManager(Config{IdleTimeout: time.Minute, CleanupInterval: time.Hour})
	defer m.Stop()

	stale, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	require.NoError(t, err)
	fresh, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	require.NoError(t, err)

	var evicted []string
	m.OnEvict(func(id string) {
		// the hook runs without the manager lock held
		assert.Equal(t, 1, m.Count())
		evicted = append(evicted, id)
	})

	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-2 * time.Minute)
	stale.mu.Unlock()

	assert.Equal(t, 1, m.evictIdle(time.Now()))
	assert.Equal(t, []string{stale.ID()}, evicted)
	_, err = m.Get(stale.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManager_EvictionDisabled(t *testing.T) {
	m := NewManager(Config{})
	defer m.Stop()

	_, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	require.NoError(t, err)
	assert.Equal(t, 0, m.evictIdle(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, m.Count())
}

func TestManager_BackgroundCleanup(t *testing.T) {
	m := NewManager(Config{IdleTimeout: 10 * time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	defer m.Stop()

	_, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_InjectsPublisher(t *testing.T) {
	bus := events.NewEventBus()
	var mu sync.Mutex
	var seen []string
	bus.SubscribeFunc(events.TypeStepApplied, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.EnvID())
	})

	m := NewManager(Config{Publisher: bus})
	defer m.Stop()

	inst, err := m.Create(env.RushHourID, env.Options{Board: nearWinBoard, EnvID: "published"})
	require.NoError(t, err)
	require.NoError(t, inst.Do(func(e env.Environment) error {
		_, err := e.Step(context.Background(), []int{0, int(core.Left)})
		return err
	}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"published"}, seen)
}

func TestManager_StopRefusesCreate(t *testing.T) {
	m := NewManager(Config{IdleTimeout: time.Minute})
	m.Stop()
	m.Stop()

	_, err := m.Create(env.SlidingPuzzleID, env.Options{Tiles: 8})
	assert.ErrorIs(t, err, ErrStopped)
}
