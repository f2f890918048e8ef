package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
)

const (
	serverName    = "Visual Puzzles"
	serverVersion = "1.0.0"
)

const instructions = `Visual Puzzles - MCP Interface

Play sliding tile puzzles (n_Puzzle-v0) and Rush Hour (RushHour-v0).

SLIDING PUZZLE:
The grid holds tiles 1..N and a blank shown as '.'. A direction moves the
blank; moves off the edge leave the board unchanged but still count. Solved
when tile k sits at row k/m, column k%m (the blank is tile 0, top left).

RUSH HOUR:
A 6x6 board of pieces. 'o' is empty, 'x' is a wall, 'A' is the main car.
Horizontal pieces move left/right, vertical pieces up/down, one cell per
step. Solved when 'A' reaches row 2, column 5. Pieces are addressed by
index; render lists them.

Every step costs -1 reward except the winning Rush Hour move (0).

AVAILABLE TOOLS:
- list_environments: registered puzzles and live instances
- create_environment: start a new puzzle instance
- reset: restart an episode
- step: apply one action
- render: show the current board`

// Server exposes the session manager as MCP tools
type Server struct {
	manager   *session.Manager
	defaults  func(name string) env.Options
	mcpServer *server.MCPServer
	logger    zerolog.Logger
}

// NewServer creates the MCP server and registers its tools. A nil
// defaults func leaves options at the engine defaults.
func NewServer(manager *session.Manager, defaults func(name string) env.Options, logger zerolog.Logger) *Server {
	if defaults == nil {
		defaults = func(string) env.Options { return env.Options{} }
	}
	s := &Server{
		manager:  manager,
		defaults: defaults,
		logger:   logger.With().Str("component", "mcp_server").Logger(),
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying server for custom transports
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("Serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	envIDProp := map[string]interface{}{
		"type":        "string",
		"description": "Environment instance id returned by create_environment",
	}

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_environments",
		Description: "List registered puzzles and live environment instances",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListEnvironments)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "create_environment",
		Description: "Create a puzzle instance and start its first episode",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"env": map[string]interface{}{
					"type":        "string",
					"enum":        []string{env.SlidingPuzzleID, env.RushHourID},
					"description": "Registered environment id",
				},
				"tiles": map[string]interface{}{
					"type":        "integer",
					"description": "Sliding puzzle: number of numbered tiles (8, 15, 24, ...)",
				},
				"step_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Sliding puzzle: truncate after this many steps (0 = never)",
				},
				"board": map[string]interface{}{
					"type":        "string",
					"description": "Rush Hour: 36-character board description",
				},
				"seed": map[string]interface{}{
					"type":        "integer",
					"description": "Seed for the shuffle or catalog pick",
				},
			},
			Required: []string{"env"},
		},
	}, s.handleCreateEnvironment)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "reset",
		Description: "Restart the episode of an environment",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"env_id": envIDProp,
				"seed": map[string]interface{}{
					"type":        "integer",
					"description": "Sliding puzzle shuffle seed (optional)",
				},
			},
			Required: []string{"env_id"},
		},
	}, s.handleReset)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Apply one action. Sliding puzzle: direction only. Rush Hour: piece index and direction.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"env_id": envIDProp,
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "right", "down", "left"},
					"description": "Direction to move",
				},
				"piece": map[string]interface{}{
					"type":        "integer",
					"description": "Rush Hour: piece index as shown by render",
				},
			},
			Required: []string{"env_id", "direction"},
		},
	}, s.handleStep)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "render",
		Description: "Show the current board as text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"env_id": envIDProp,
			},
			Required: []string{"env_id"},
		},
	}, s.handleRender)
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	return request.GetArguments()
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func (s *Server) handleListEnvironments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	b.WriteString("Registered environments:\n")
	for _, id := range s.manager.Registry().IDs() {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	list := s.manager.List()
	fmt.Fprintf(&b, "\nLive instances (%d/%d):\n", len(list), s.manager.MaxEnvs())
	if len(list) == 0 {
		b.WriteString("(none)\n")
	}
	for _, sum := range list {
		state := "running"
		switch {
		case sum.AwaitingReset():
			state = "awaiting reset"
		case sum.Terminated:
			state = "solved"
		case sum.Truncated:
			state = "truncated"
		}
		fmt.Fprintf(&b, "- %s  %s  steps=%d  %s\n", sum.ID, sum.Name, sum.Steps, state)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleCreateEnvironment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	name, _ := args["env"].(string)
	if name == "" {
		return mcp.NewToolResultError("env is required"), nil
	}

	opts := s.defaults(name)
	if tiles, ok := intArg(args, "tiles"); ok && tiles > 0 {
		opts.Tiles = tiles
	}
	if limit, ok := intArg(args, "step_limit"); ok && limit > 0 {
		opts.StepLimit = limit
	}
	if board, _ := args["board"].(string); board != "" {
		opts.Board = board
		opts.OptimalSteps = nil
	}
	var seed *int64
	if v, ok := intArg(args, "seed"); ok {
		opts.Seed = int64(v)
		sv := int64(v)
		seed = &sv
	}

	inst, err := s.manager.Create(name, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text string
	err = inst.Do(func(e env.Environment) error {
		if _, _, err := e.Reset(ctx, env.ResetOptions{Seed: seed}); err != nil {
			return err
		}
		frame, err := e.Render(env.RenderText)
		if err != nil {
			return err
		}
		text = fmt.Sprintf("Created %s\nenv_id: %s\naction_space: %v\n\n%s%s",
			e.Name(), e.ID(), e.ActionSpace(), frame.Text, pieceLegend(e.Name(), frame.Text))
		return nil
	})
	if err != nil {
		_ = s.manager.Close(inst.ID())
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	inst, err := s.instance(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts env.ResetOptions
	if v, ok := intArg(args, "seed"); ok {
		sv := int64(v)
		opts.Seed = &sv
	}

	var text string
	err = inst.Do(func(e env.Environment) error {
		_, info, err := e.Reset(ctx, opts)
		if err != nil {
			return err
		}
		frame, err := e.Render(env.RenderText)
		if err != nil {
			return err
		}
		text = frame.Text + formatInfo(info)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	inst, err := s.instance(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dirArg, _ := args["direction"].(string)
	dir, err := core.ParseDirection(dirArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	action := []int{int(dir)}
	if inst.Name() == env.RushHourID {
		piece, ok := intArg(args, "piece")
		if !ok {
			return mcp.NewToolResultError("piece is required for " + env.RushHourID), nil
		}
		action = []int{piece, int(dir)}
	}

	var text string
	err = inst.Do(func(e env.Environment) error {
		res, err := e.Step(ctx, action)
		if err != nil {
			return err
		}
		frame, err := e.Render(env.RenderText)
		if err != nil {
			return err
		}
		text = formatStep(frame.Text, res)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inst, err := s.instance(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var text string
	err = inst.Do(func(e env.Environment) error {
		frame, err := e.Render(env.RenderText)
		if err != nil {
			return err
		}
		ep := e.Episode()
		text = fmt.Sprintf("%s%ssteps: %d  terminated: %t  truncated: %t\n",
			frame.Text, pieceLegend(e.Name(), frame.Text), ep.Steps, ep.Terminated, ep.Truncated)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) instance(args map[string]interface{}) (*session.Instance, error) {
	id, _ := args["env_id"].(string)
	if id == "" {
		return nil, fmt.Errorf("env_id is required")
	}
	return s.manager.Get(id)
}

// pieceLegend lists Rush Hour piece indices by symbol, reading the
// symbols back from the text board
func pieceLegend(name, board string) string {
	if name != env.RushHourID {
		return ""
	}
	var obs env.Observation
	for _, line := range strings.Split(strings.TrimSpace(board), "\n") {
		obs = append(obs, strings.Fields(line))
	}

	var b strings.Builder
	b.WriteString("\npieces:")
	for i, sym := range env.PieceSymbols(obs) {
		fmt.Fprintf(&b, " %d=%s", i, sym)
	}
	b.WriteString("\n")
	return b.String()
}

func formatStep(board string, res env.StepResult) string {
	var b strings.Builder
	b.WriteString(board)
	fmt.Fprintf(&b, "reward: %g  terminated: %t  truncated: %t\n", res.Reward, res.Terminated, res.Truncated)
	b.WriteString(formatInfo(res.Info))
	if res.Terminated {
		b.WriteString("Solved!\n")
	}
	return b.String()
}

func formatInfo(info env.Info) string {
	data, err := json.Marshal(info)
	if err != nil {
		return ""
	}
	return "info: " + string(data) + "\n"
}
