package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/testutil"
)

func runApp(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(input)
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"puzzle", "--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	return out.String(), err
}

func TestSliding_InvalidInputThenQuit(t *testing.T) {
	out, err := runApp(t, "x\nq\n", "sliding", "--tiles", "8", "--seed", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "Welcome to the 8-puzzle!")
	assert.Contains(t, out, "Manhattan distance:")
	assert.Contains(t, out, "Invalid input. Please try again.")
	assert.Contains(t, out, "Quitting the game.")
}

func TestSliding_CountsSteps(t *testing.T) {
	out, err := runApp(t, "w\ns\n", "sliding", "--tiles", "15", "--seed", "4")
	require.NoError(t, err)

	assert.Contains(t, out, "Steps: 0, Total Reward: 0")
	assert.Contains(t, out, "Steps: 1, Total Reward: -1")
	assert.Contains(t, out, "Steps: 2, Total Reward: -2")
	// input ran out, which quits
	assert.Contains(t, out, "Quitting the game.")
}

func TestSliding_StepLimitEndsGame(t *testing.T) {
	out, err := runApp(t, "w\nw\nw\n", "sliding", "--tiles", "8", "--seed", "4", "--step-limit", "2")
	require.NoError(t, err)
	if !strings.Contains(out, "Solved in") {
		assert.Contains(t, out, "Out of steps after 2 moves. Game over!")
	}
}

func TestRushHour_WinningMove(t *testing.T) {
	out, err := runApp(t, "0\n1\n", "rushhour", "--board", testutil.NearWinBoard)
	require.NoError(t, err)

	assert.Contains(t, out, "pieces: 0=A 1=B 2=C")
	assert.Contains(t, out, "action=[0 1] reward=0 moved=true")
	assert.Contains(t, out, "Game won in 1 steps!")
}

func TestRushHour_RejectsBadInput(t *testing.T) {
	out, err := runApp(t, "abc\n42\n1\n1\n3\n", "rushhour", "--board", testutil.SampleBoard)
	require.NoError(t, err)

	assert.Contains(t, out, "Please enter a number.")
	assert.Contains(t, out, "Invalid action:")
	assert.NotContains(t, out, "Game won")
}

func TestRushHour_BadBoard(t *testing.T) {
	_, err := runApp(t, "", "rushhour", "--board", "AAA")
	assert.Error(t, err)
}

func TestRollout_PersistsExperiences(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "", "rollout",
		"--env", env.RushHourID,
		"--board", testutil.NearWinBoard,
		"--episodes", "3",
		"--max-steps", "20",
		"--seed", "5",
		"--out", dir,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "episode 0:")
	assert.Contains(t, out, "episode 2:")
	assert.Contains(t, out, "/3 episodes")

	files, err := filepath.Glob(filepath.Join(dir, "experiences_*.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestRollout_UnknownEnv(t *testing.T) {
	_, err := runApp(t, "", "rollout", "--env", "Chess-v0", "--episodes", "1")
	assert.Error(t, err)
}

func TestPrintLegend(t *testing.T) {
	var out bytes.Buffer
	printLegend(&out, []string{"A", "C"})
	assert.Equal(t, "pieces: 0=A 1=C\n", out.String())
}
