package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetGlobals() {
	cfg = nil
	v = nil
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInit(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
puzzles:
  sliding:
    n_puzzle: 8
    step_limit: 200
    image_size: 300
  rush_hour:
    board_description: "ooxoKoCCoIKoGAAIKoGoHJDDEEHJoLoFFFoL"
server:
  grpc_server:
    port: 8080
    max_envs: 4
`)
	resetGlobals()
	require.NoError(t, Init(path))

	c := Get()
	assert.Equal(t, 8, c.Puzzles.Sliding.NPuzzle)
	assert.Equal(t, 200, c.Puzzles.Sliding.StepLimit)
	assert.Equal(t, 300, c.Puzzles.Sliding.ImageSize)
	assert.Equal(t, "ooxoKoCCoIKoGAAIKoGoHJDDEEHJoLoFFFoL", c.Puzzles.RushHour.BoardDescription)
	assert.Equal(t, 8080, c.Server.GRPCServer.Port)
	assert.Equal(t, 4, c.Server.GRPCServer.MaxEnvs)
	// untouched keys keep their defaults
	assert.Equal(t, 50, c.Puzzles.RushHour.CellSize)
	assert.Equal(t, "none", c.Experience.Persistence.Type)
	assert.Equal(t, path, ConfigFilePath())
}

func TestInitWithDefaults(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init("/non/existent/path/config.yaml"))

	c := Get()
	assert.Equal(t, 15, c.Puzzles.Sliding.NPuzzle)
	assert.False(t, c.Puzzles.Sliding.SolvableOnly)
	assert.Equal(t, 50051, c.Server.GRPCServer.Port)
	assert.Equal(t, "n_Puzzle-v0", c.UI.Puzzle)
}

func TestInit_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"NotSquare", "puzzles:\n  sliding:\n    n_puzzle: 10\n"},
		{"ImageNotDivisible", "puzzles:\n  sliding:\n    n_puzzle: 8\n    image_size: 400\n"},
		{"UnknownFilter", "puzzles:\n  sliding:\n    filter_effect: VIGNETTE\n"},
		{"BadBoard", "puzzles:\n  rush_hour:\n    board_description: AAA\n"},
		{"BadPort", "server:\n  grpc_server:\n    port: 70000\n"},
		{"BadPersistence", "experience:\n  persistence:\n    type: s3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tt.content)
			resetGlobals()
			assert.Error(t, Init(path))
		})
	}
}

func TestEnvironmentVariables(t *testing.T) {
	t.Setenv("VPZ_PUZZLES_SLIDING_N_PUZZLE", "24")
	t.Setenv("VPZ_SERVER_GRPC_SERVER_PORT", "9090")

	resetGlobals()
	require.NoError(t, Init(""))

	c := Get()
	assert.Equal(t, 24, c.Puzzles.Sliding.NPuzzle)
	assert.Equal(t, 9090, c.Server.GRPCServer.Port)
}

func TestSetAndGetHelpers(t *testing.T) {
	resetGlobals()
	require.NoError(t, Init(""))

	Set("puzzles.sliding.step_limit", 50)
	Set("development.verbose_logging", true)
	Set("ui.window.title", "Test")

	c := Get()
	assert.Equal(t, 50, c.Puzzles.Sliding.StepLimit)
	assert.True(t, c.Development.VerboseLogging)
	assert.Equal(t, 50, GetInt("puzzles.sliding.step_limit"))
	assert.True(t, GetBool("development.verbose_logging"))
	assert.Equal(t, "Test", GetString("ui.window.title"))
	assert.NotNil(t, GetViper())
}

func TestLoadEnvironmentConfig(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "config.yaml", `
puzzles:
  sliding:
    n_puzzle: 8
    image_size: 300
server:
  grpc_server:
    port: 50051
`)
	writeConfig(t, dir, "config.prod.yaml", `
puzzles:
  sliding:
    step_limit: 500
server:
  grpc_server:
    port: 8080
    log_level: "error"
`)

	resetGlobals()
	require.NoError(t, Init(base))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 8, c.Puzzles.Sliding.NPuzzle)
	assert.Equal(t, 500, c.Puzzles.Sliding.StepLimit)
	assert.Equal(t, 8080, c.Server.GRPCServer.Port)
	assert.Equal(t, "error", c.Server.GRPCServer.LogLevel)

	assert.NoError(t, LoadEnvironmentConfig("staging"))
	assert.NoError(t, LoadEnvironmentConfig(""))
}
