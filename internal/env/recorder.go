package env

import (
	"context"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// recorder forwards transitions to an optional collector. Steps taken
// after the episode ended change nothing and are not recorded.
type recorder struct {
	collector *experience.Collector
}

func (r recorder) record(ctx context.Context, e Environment, before core.Episode, prev Observation, action []int, res StepResult) error {
	if r.collector == nil || before.Over() {
		return nil
	}
	return r.collector.Record(ctx, &experience.Experience{
		EnvID:      e.ID(),
		Env:        e.Name(),
		Step:       e.Episode().Steps,
		State:      prev,
		Action:     append([]int(nil), action...),
		Reward:     res.Reward,
		NextState:  res.Observation,
		Terminated: res.Terminated,
		Truncated:  res.Truncated,
		Info:       res.Info,
	})
}
