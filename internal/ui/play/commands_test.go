package play

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

func TestTriggered_KeepsBindingOrder(t *testing.T) {
	bindings := []Binding[int]{
		{Key: 1, Command: Command{Kind: CommandMove, Direction: core.Up}},
		{Key: 2, Command: Command{Kind: CommandMove, Direction: core.Left}},
		{Key: 3, Command: Command{Kind: CommandReset}},
		{Key: 4, Command: Command{Kind: CommandMove, Direction: core.Down}},
	}
	pressed := map[int]bool{4: true, 1: true, 3: true}

	for i := 0; i < 20; i++ {
		cmds := Triggered(bindings, func(k int) bool { return pressed[k] })
		require.Len(t, cmds, 3)
		assert.Equal(t, core.Up, cmds[0].Direction)
		assert.Equal(t, CommandReset, cmds[1].Kind)
		assert.Equal(t, core.Down, cmds[2].Direction)
	}

	assert.Empty(t, Triggered(bindings, func(int) bool { return false }))
}

func TestApply_SlidingEpisode(t *testing.T) {
	c := newSliding(t, []int{1, 0, 2, 3})

	require.NoError(t, c.Apply(Command{Kind: CommandMove, Direction: core.Left}))
	assert.True(t, c.Episode().Terminated)
	assert.Equal(t, 1, c.Episode().Steps)

	err := c.Apply(Command{Kind: CommandMove, Direction: core.Right})
	assert.ErrorIs(t, err, ErrEpisodeOver)
	require.NoError(t, c.Apply(Command{Kind: CommandClick, Cell: core.NewCoordinate(0, 1)}))
	assert.Equal(t, 1, c.Episode().Steps)

	require.NoError(t, c.Apply(Command{Kind: CommandReset}))
	assert.Equal(t, 0, c.Episode().Steps)
	assert.False(t, c.Episode().Over())
}

func TestApply_ToggleGoal(t *testing.T) {
	c := newSliding(t, []int{3, 1, 2, 0})

	board, err := c.Frame(env.RenderRGB)
	require.NoError(t, err)
	goal, err := c.env.Render(env.RenderGoal)
	require.NoError(t, err)
	require.NotEqual(t, goal.Image.Pix, board.Image.Pix)

	require.NoError(t, c.Apply(Command{Kind: CommandToggleGoal}))
	assert.True(t, c.ShowingGoal())
	assert.Contains(t, c.Status(), "goal")
	shown, err := c.Frame(env.RenderRGB)
	require.NoError(t, err)
	assert.Equal(t, goal.Image.Pix, shown.Image.Pix)

	// text frames ignore the toggle
	text, err := c.Frame(env.RenderText)
	require.NoError(t, err)
	assert.Contains(t, text.Text, "  3")

	require.NoError(t, c.Apply(Command{Kind: CommandToggleGoal}))
	assert.False(t, c.ShowingGoal())
	assert.Equal(t, "Steps: 0", c.Status())
	shown, err = c.Frame(env.RenderRGB)
	require.NoError(t, err)
	assert.Equal(t, board.Image.Pix, shown.Image.Pix)
}

func TestApply_RushHourCommands(t *testing.T) {
	c := newRushHour(t)

	require.NoError(t, c.Apply(Command{Kind: CommandToggleGoal}))
	assert.False(t, c.ShowingGoal())

	require.NoError(t, c.Apply(Command{Kind: CommandNextPiece}))
	assert.Equal(t, 1, c.Selected())
	require.NoError(t, c.Apply(Command{Kind: CommandSelect, Piece: 0}))
	assert.Equal(t, 0, c.Selected())

	require.NoError(t, c.Apply(Command{Kind: CommandMove, Direction: core.Right}))
	assert.True(t, c.Episode().Terminated)
	assert.ErrorIs(t, c.Apply(Command{Kind: CommandMove, Direction: core.Left}), ErrEpisodeOver)
}
