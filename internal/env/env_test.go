package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/config"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/testutil"
)

const nearWinBoard = testutil.NearWinBoard

func seed(v int64) *int64 { return &v }

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{RushHourID, SlidingPuzzleID}, IDs())

	r := NewRegistry()
	require.NoError(t, r.Register("custom-v0", newSlidingEnv))
	assert.Error(t, r.Register("custom-v0", newSlidingEnv))
	assert.Equal(t, []string{"custom-v0"}, r.IDs())

	_, err := r.Make("missing-v0", Options{})
	assert.ErrorIs(t, err, core.ErrUnknownEnvironment)

	e, err := r.Make("custom-v0", Options{Tiles: 8})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID())

	e, err = r.Make("custom-v0", Options{Tiles: 8, EnvID: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", e.ID())
}

func TestParseRenderMode(t *testing.T) {
	for in, want := range map[string]RenderMode{
		"":               RenderText,
		"ascii":          RenderText,
		"rgb_array":      RenderRGB,
		"goal_image":     RenderGoal,
		"original":       RenderOriginal,
		"original_image": RenderOriginal,
	} {
		got, ok := ParseRenderMode(in)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := ParseRenderMode("human")
	assert.False(t, ok)
}

func TestSlidingEnv_ResetAndStep(t *testing.T) {
	ctx := context.Background()
	e, err := Make(SlidingPuzzleID, Options{Tiles: 8})
	require.NoError(t, err)
	assert.Equal(t, SlidingPuzzleID, e.Name())
	assert.Equal(t, []int{4}, e.ActionSpace())

	obs, info, err := e.Reset(ctx, ResetOptions{Tiles: []int{1, 0, 2, 3, 4, 5, 6, 7, 8}})
	require.NoError(t, err)
	assert.Equal(t, Observation{{"1", "0", "2"}, {"3", "4", "5"}, {"6", "7", "8"}}, obs)
	assert.Equal(t, 1, info["manhattan_distance"])

	res, err := e.Step(ctx, []int{int(core.Left)})
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, -1.0, res.Reward)
	assert.Equal(t, 0, res.Info["manhattan_distance"])
	assert.Equal(t, 1, res.Info["steps"])

	_, err = e.Step(ctx, []int{0, 1})
	assert.ErrorIs(t, err, core.ErrInvalidAction)
	_, err = e.Step(ctx, []int{7})
	assert.ErrorIs(t, err, core.ErrInvalidAction)
}

func TestSlidingEnv_SeededResetIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := Make(SlidingPuzzleID, Options{Tiles: 15})
	require.NoError(t, err)
	b, err := Make(SlidingPuzzleID, Options{Tiles: 15, SolvableOnly: false})
	require.NoError(t, err)

	obsA, _, err := a.Reset(ctx, ResetOptions{Seed: seed(11)})
	require.NoError(t, err)
	obsB, _, err := b.Reset(ctx, ResetOptions{Seed: seed(11)})
	require.NoError(t, err)
	assert.Equal(t, obsA, obsB)

	// seedless resets draw from the environment's own seeded source
	c, err := Make(SlidingPuzzleID, Options{Tiles: 15, Seed: 5})
	require.NoError(t, err)
	d, err := Make(SlidingPuzzleID, Options{Tiles: 15, Seed: 5})
	require.NoError(t, err)
	obsC, _, err := c.Reset(ctx, ResetOptions{})
	require.NoError(t, err)
	obsD, _, err := d.Reset(ctx, ResetOptions{})
	require.NoError(t, err)
	assert.Equal(t, obsC, obsD)
}

func TestSlidingEnv_Render(t *testing.T) {
	e, err := Make(SlidingPuzzleID, Options{Tiles: 3})
	require.NoError(t, err)
	_, _, err = e.Reset(context.Background(), ResetOptions{Tiles: []int{3, 1, 2, 0}})
	require.NoError(t, err)

	frame, err := e.Render(RenderText)
	require.NoError(t, err)
	assert.Equal(t, "  3   1\n  2   .\n", frame.Text)

	frame, err = e.Render(RenderRGB)
	require.NoError(t, err)
	require.NotNil(t, frame.Image)
	assert.Equal(t, 200, frame.Image.Bounds().Dx())

	_, err = e.Render("svg")
	assert.ErrorIs(t, err, ErrUnsupportedRenderMode)

	_, err = Make(SlidingPuzzleID, Options{Tiles: 8, ImageSize: 100})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestSlidingEnv_FilterAndGoalViews(t *testing.T) {
	_, err := Make(SlidingPuzzleID, Options{Tiles: 3, FilterEffect: "vignette"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	e, err := Make(SlidingPuzzleID, Options{Tiles: 3, FilterEffect: "find_edges"})
	require.NoError(t, err)
	_, _, err = e.Reset(context.Background(), ResetOptions{Tiles: []int{3, 1, 2, 0}})
	require.NoError(t, err)

	goal, err := e.Render(RenderGoal)
	require.NoError(t, err)
	require.NotNil(t, goal.Image)
	assert.Equal(t, 200, goal.Image.Bounds().Dx())

	original, err := e.Render(RenderOriginal)
	require.NoError(t, err)
	require.NotNil(t, original.Image)
	assert.Equal(t, 200, original.Image.Bounds().Dx())

	// the goal is built from the filtered picture, the original is not
	assert.NotEqual(t, original.Image.Pix, goal.Image.Pix)

	plain, err := Make(SlidingPuzzleID, Options{Tiles: 3})
	require.NoError(t, err)
	_, _, err = plain.Reset(context.Background(), ResetOptions{Tiles: []int{3, 1, 2, 0}})
	require.NoError(t, err)
	unfiltered, err := plain.Render(RenderOriginal)
	require.NoError(t, err)
	assert.Equal(t, unfiltered.Image.Pix, original.Image.Pix)
}

func TestRushHourEnv(t *testing.T) {
	ctx := context.Background()
	e, err := Make(RushHourID, Options{Board: nearWinBoard})
	require.NoError(t, err)
	assert.Equal(t, RushHourID, e.Name())
	assert.Equal(t, []int{3, 4}, e.ActionSpace())

	obs, info, err := e.Reset(ctx, ResetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"o", "o", "o", "A", "A", "o"}, obs[2])
	assert.Nil(t, info["num_steps_to_finish"])

	res, err := e.Step(ctx, []int{0, int(core.Right)})
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, 0.0, res.Reward)
	assert.Equal(t, true, res.Info["moved"])

	frame, err := e.Render(RenderText)
	require.NoError(t, err)
	assert.Contains(t, frame.Text, "o o o o A A\n")

	frame, err = e.Render(RenderRGB)
	require.NoError(t, err)
	assert.Equal(t, 300, frame.Image.Bounds().Dx())

	_, err = e.Render(RenderGoal)
	assert.ErrorIs(t, err, ErrUnsupportedRenderMode)

	_, err = e.Step(ctx, []int{0})
	assert.ErrorIs(t, err, core.ErrInvalidAction)
	_, err = e.Step(ctx, []int{3, 0})
	assert.ErrorIs(t, err, core.ErrInvalidAction)
}

func TestRushHourEnv_CatalogPath(t *testing.T) {
	e, err := Make(RushHourID, Options{CatalogPath: "testdata/rush.txt", Seed: 3})
	require.NoError(t, err)

	_, info, err := e.Reset(context.Background(), ResetOptions{})
	require.NoError(t, err)
	assert.NotNil(t, info["num_steps_to_finish"])

	_, err = Make(RushHourID, Options{CatalogPath: "testdata/missing.txt"})
	assert.Error(t, err)

	_, err = Make(RushHourID, Options{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestEnvironment_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := Make(RushHourID, Options{Board: nearWinBoard})
	require.NoError(t, err)
	_, _, err = e.Reset(ctx, ResetOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = e.Step(ctx, []int{0, 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvironment_RecordsExperienceAndEvents(t *testing.T) {
	collector := experience.NewCollector(experience.NewBuffer(10, testutil.NopLogger()), nil, 0, testutil.NopLogger())
	bus := events.NewEventBus()
	var seen []string
	bus.SubscribeFunc(events.TypeStepApplied, func(ev events.Event) { seen = append(seen, ev.EnvID()) })

	e, err := Make(RushHourID, Options{
		Board:     nearWinBoard,
		EnvID:     "rec-1",
		Collector: collector,
		Publisher: bus,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.Step(ctx, []int{1, int(core.Right)})
	require.NoError(t, err)
	_, err = e.Step(ctx, []int{0, int(core.Right)})
	require.NoError(t, err)

	assert.Equal(t, []string{"rec-1", "rec-1"}, seen)

	recorded := collector.Buffer().GetAll()
	require.Len(t, recorded, 2)
	first, last := recorded[0], recorded[1]
	assert.Equal(t, "rec-1", first.EnvID)
	assert.Equal(t, RushHourID, first.Env)
	assert.Equal(t, []int{1, 1}, first.Action)
	assert.Equal(t, -1.0, first.Reward)
	assert.Equal(t, first.NextState, last.State)
	assert.True(t, last.Terminated)
	assert.Equal(t, 2, last.Step)
	assert.Equal(t, "A", last.NextState[2][5])

	// the episode is over, further steps are no-ops and stay out of the data
	res, err := e.Step(ctx, []int{0, int(core.Left)})
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Len(t, collector.Buffer().GetAll(), 0)
	assert.Equal(t, int64(2), collector.Buffer().Stats().TotalAdded)
}

func TestSlidingEnvironment_SkipsRecordingBeforeFirstReset(t *testing.T) {
	collector := experience.NewCollector(experience.NewBuffer(10, testutil.NopLogger()), nil, 0, testutil.NopLogger())
	e, err := Make(SlidingPuzzleID, Options{Tiles: 3, Collector: collector})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.Step(ctx, []int{int(core.Right)})
	require.NoError(t, err)
	assert.Equal(t, 0, collector.Buffer().Size())

	_, _, err = e.Reset(ctx, ResetOptions{Tiles: []int{1, 0, 2, 3}})
	require.NoError(t, err)
	_, err = e.Step(ctx, []int{int(core.Left)})
	require.NoError(t, err)
	assert.Equal(t, 1, collector.Buffer().Size())
}

func TestOptionsFromConfig(t *testing.T) {
	c := &config.Config{}
	c.Puzzles.Sliding.NPuzzle = 8
	c.Puzzles.Sliding.StepLimit = 30
	c.Puzzles.Sliding.SolvableOnly = true
	c.Puzzles.Sliding.ImageSize = 300
	c.Puzzles.Sliding.FilterEffect = "SHARPEN"
	c.Puzzles.RushHour.BoardDescription = nearWinBoard
	c.Puzzles.RushHour.CatalogPath = "testdata/rush.txt"
	c.Puzzles.RushHour.CellSize = 40

	s := OptionsFromConfig(c, SlidingPuzzleID)
	assert.Equal(t, 8, s.Tiles)
	assert.Equal(t, 30, s.StepLimit)
	assert.True(t, s.SolvableOnly)
	assert.Equal(t, 300, s.ImageSize)
	assert.Equal(t, "SHARPEN", s.FilterEffect)
	assert.Empty(t, s.Board)

	r := OptionsFromConfig(c, RushHourID)
	assert.Equal(t, nearWinBoard, r.Board)
	assert.Equal(t, "testdata/rush.txt", r.CatalogPath)
	assert.Equal(t, 40, r.CellSize)
	assert.Zero(t, r.Tiles)

	e, err := Make(SlidingPuzzleID, s)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, e.ActionSpace())
}

func TestPieceSymbols(t *testing.T) {
	obs := Observation{
		{"o", "o", "x"},
		{"C", "A", "A"},
		{"C", "B", "o"},
	}
	assert.Equal(t, []string{"A", "B", "C"}, PieceSymbols(obs))
	assert.Empty(t, PieceSymbols(Observation{{"o", "x"}}))
}
