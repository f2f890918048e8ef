package play

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// blank label in sliding puzzle observations
const blankLabel = "0"

// ErrNoPieceSelected is returned when a Rush Hour move has no piece
var ErrNoPieceSelected = errors.New("no piece selected")

// Controller turns human intents into environment actions. It holds the
// selection and status line a front end displays.
type Controller struct {
	ctx      context.Context
	env      env.Environment
	obs      env.Observation
	pieces   []string
	selected int
	last     *env.StepResult
	status   string
	showGoal bool
}

// NewController wraps e and starts its first episode
func NewController(ctx context.Context, e env.Environment) (*Controller, error) {
	c := &Controller{ctx: ctx, env: e}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset starts a new episode and clears the selection
func (c *Controller) Reset() error {
	obs, _, err := c.env.Reset(c.ctx, env.ResetOptions{})
	if err != nil {
		return err
	}
	c.setObservation(obs)
	c.selected = 0
	c.last = nil
	c.status = "New episode"
	return nil
}

func (c *Controller) setObservation(obs env.Observation) {
	c.obs = obs
	if !c.IsRushHour() {
		return
	}
	c.pieces = env.PieceSymbols(obs)
}

// IsRushHour reports whether actions need a piece index
func (c *Controller) IsRushHour() bool {
	return c.env.Name() == env.RushHourID
}

// Move applies a direction to the blank or to the selected piece
func (c *Controller) Move(d core.Direction) error {
	action := []int{int(d)}
	if c.IsRushHour() {
		if len(c.pieces) == 0 {
			return ErrNoPieceSelected
		}
		action = []int{c.selected, int(d)}
	}

	res, err := c.env.Step(c.ctx, action)
	if err != nil {
		c.status = err.Error()
		return err
	}
	c.setObservation(res.Observation)
	c.last = &res

	ep := c.env.Episode()
	switch {
	case res.Terminated:
		c.status = fmt.Sprintf("Solved in %d steps! Press R to play again", ep.Steps)
	case res.Truncated:
		c.status = fmt.Sprintf("Out of steps (%d). Press R to retry", ep.Steps)
	default:
		c.status = fmt.Sprintf("Steps: %d", ep.Steps)
	}
	return nil
}

// SelectPiece selects the Rush Hour piece at index i
func (c *Controller) SelectPiece(i int) bool {
	if i < 0 || i >= len(c.pieces) {
		return false
	}
	c.selected = i
	c.status = fmt.Sprintf("Selected piece %d (%s)", i, c.pieces[i])
	return true
}

// NextPiece cycles the selection
func (c *Controller) NextPiece() {
	if len(c.pieces) == 0 {
		return
	}
	c.SelectPiece((c.selected + 1) % len(c.pieces))
}

// Click handles a click on a grid cell. In the sliding puzzle a tile next
// to the blank slides into it; in Rush Hour the clicked piece is selected.
func (c *Controller) Click(cell core.Coordinate) error {
	if c.IsRushHour() {
		sym, ok := c.cellAt(cell)
		if !ok {
			return nil
		}
		if i := sort.SearchStrings(c.pieces, sym); i < len(c.pieces) && c.pieces[i] == sym {
			c.SelectPiece(i)
		}
		return nil
	}

	blank, ok := c.find(blankLabel)
	if !ok {
		return nil
	}
	for d := core.Direction(0); d < core.NumDirections; d++ {
		if blank.Move(d) == cell {
			return c.Move(d)
		}
	}
	return nil
}

func (c *Controller) cellAt(at core.Coordinate) (string, bool) {
	if !at.IsValid(len(c.obs), len(c.obs[0])) {
		return "", false
	}
	return c.obs[at.Row][at.Col], true
}

func (c *Controller) find(label string) (core.Coordinate, bool) {
	for r, row := range c.obs {
		for col, cell := range row {
			if cell == label {
				return core.NewCoordinate(r, col), true
			}
		}
	}
	return core.Coordinate{}, false
}

// SelectedCells returns the cells of the selected Rush Hour piece
func (c *Controller) SelectedCells() []core.Coordinate {
	if !c.IsRushHour() || len(c.pieces) == 0 {
		return nil
	}
	sym := c.pieces[c.selected]
	var cells []core.Coordinate
	for r, row := range c.obs {
		for col, cell := range row {
			if cell == sym {
				cells = append(cells, core.NewCoordinate(r, col))
			}
		}
	}
	return cells
}

// Selected returns the selected piece index
func (c *Controller) Selected() int { return c.selected }

// Pieces returns piece symbols in index order
func (c *Controller) Pieces() []string { return append([]string(nil), c.pieces...) }

// Observation returns the latest observation
func (c *Controller) Observation() env.Observation { return c.obs }

// LastStep returns the most recent step result, or nil after a reset
func (c *Controller) LastStep() *env.StepResult { return c.last }

// Status is a one-line message for the front end
func (c *Controller) Status() string { return c.status }

// Episode exposes the environment's episode state
func (c *Controller) Episode() core.Episode { return c.env.Episode() }

// ToggleGoal switches the image view between the board and the solved
// picture. Only the sliding puzzle has a goal picture.
func (c *Controller) ToggleGoal() {
	if c.IsRushHour() {
		return
	}
	c.showGoal = !c.showGoal
	if c.showGoal {
		c.status = "Showing goal, press G to return"
	} else {
		c.status = fmt.Sprintf("Steps: %d", c.env.Episode().Steps)
	}
}

// ShowingGoal reports whether the goal picture replaces the board
func (c *Controller) ShowingGoal() bool { return c.showGoal }

// Frame renders the current grid. The rgb view shows the goal picture
// while it is toggled on.
func (c *Controller) Frame(mode env.RenderMode) (env.Frame, error) {
	if mode == env.RenderRGB && c.showGoal {
		return c.env.Render(env.RenderGoal)
	}
	return c.env.Render(mode)
}
