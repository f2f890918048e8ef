package subscribers_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events/subscribers"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLoggerSubscriber_InterestedIn(t *testing.T) {
	logSub := subscribers.NewLoggerSubscriber("test-logger", zerolog.Nop(), zerolog.InfoLevel)

	assert.Equal(t, "test-logger", logSub.ID())
	assert.True(t, logSub.InterestedIn(events.TypeStepApplied))
	assert.True(t, logSub.InterestedIn("any.event.type"))

	logSub.SetEventFilter([]string{events.TypeEpisodeTerminated})
	assert.True(t, logSub.InterestedIn(events.TypeEpisodeTerminated))
	assert.False(t, logSub.InterestedIn(events.TypeStepApplied))

	logSub.SetEventFilter(nil)
	assert.True(t, logSub.InterestedIn(events.TypeStepApplied))
}

func TestLoggerSubscriber_EventFields(t *testing.T) {
	testCases := []struct {
		name  string
		event events.Event
		check func(t *testing.T, line map[string]interface{})
	}{
		{
			name:  "EpisodeReset",
			event: events.NewEpisodeResetEvent("env-1", "sliding", "1 0 2 3"),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, "sliding", line["puzzle"])
				assert.Equal(t, "1 0 2 3", line["board"])
			},
		},
		{
			name:  "StepApplied",
			event: events.NewStepAppliedEvent("env-1", "rush_hour", "A right", true, -1, 4, false, false),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, "A right", line["action"])
				assert.Equal(t, true, line["moved"])
				assert.Equal(t, float64(-1), line["reward"])
				assert.Equal(t, float64(4), line["step"])
			},
		},
		{
			name:  "StepIgnored",
			event: events.NewStepIgnoredEvent("env-1", "sliding", "left", 9),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, "left", line["action"])
				assert.Equal(t, float64(9), line["step"])
			},
		},
		{
			name:  "EpisodeTerminated",
			event: events.NewEpisodeEndedEvent("env-1", "sliding", 9, true),
			check: func(t *testing.T, line map[string]interface{}) {
				assert.Equal(t, true, line["solved"])
				assert.Equal(t, float64(9), line["steps"])
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logSub := subscribers.NewLoggerSubscriber("event-logger", zerolog.New(&buf), zerolog.InfoLevel)
			logSub.HandleEvent(tc.event)

			lines := decodeLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "Episode event", lines[0]["message"])
			assert.Equal(t, "info", lines[0]["level"])
			assert.Equal(t, "env-1", lines[0]["env_id"])
			assert.Equal(t, tc.event.Type(), lines[0]["event_type"])
			tc.check(t, lines[0])
		})
	}
}

func TestLoggerSubscriber_DevModeAndBus(t *testing.T) {
	var buf bytes.Buffer
	logSub := subscribers.NewLoggerSubscriber("dev", zerolog.New(&buf), zerolog.DebugLevel)
	logSub.SetDevMode(true)

	bus := events.NewEventBus()
	bus.Subscribe(logSub)
	bus.Publish(events.NewEpisodeEndedEvent("env-2", "rush_hour", 3, false))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	data, ok := lines[0]["event_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, events.TypeEpisodeTruncated, data["type"])
	assert.Equal(t, "env-2", data["env_id"])
}
