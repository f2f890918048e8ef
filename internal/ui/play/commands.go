package play

import (
	"errors"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
)

// ErrEpisodeOver is returned for moves after the episode ended
var ErrEpisodeOver = errors.New("episode over")

type CommandKind int

const (
	CommandMove CommandKind = iota
	CommandSelect
	CommandNextPiece
	CommandReset
	CommandClick
	CommandToggleGoal
)

// Command is one user intent, independent of the input device
type Command struct {
	Kind      CommandKind
	Direction core.Direction
	Piece     int
	Cell      core.Coordinate
}

// Binding ties a key of some input backend to a command
type Binding[K comparable] struct {
	Key     K
	Command Command
}

// Triggered returns the commands of the keys justPressed reports, in
// binding order, so keys pressed in the same frame always apply the same
// way.
func Triggered[K comparable](bindings []Binding[K], justPressed func(K) bool) []Command {
	var cmds []Command
	for _, b := range bindings {
		if justPressed(b.Key) {
			cmds = append(cmds, b.Command)
		}
	}
	return cmds
}

// Apply performs cmd against the controller
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Kind {
	case CommandMove:
		if c.Episode().Over() {
			return ErrEpisodeOver
		}
		return c.Move(cmd.Direction)
	case CommandSelect:
		c.SelectPiece(cmd.Piece)
	case CommandNextPiece:
		c.NextPiece()
	case CommandReset:
		return c.Reset()
	case CommandClick:
		if c.Episode().Over() {
			return nil
		}
		return c.Click(cmd.Cell)
	case CommandToggleGoal:
		c.ToggleGoal()
	}
	return nil
}
