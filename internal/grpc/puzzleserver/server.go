package puzzleserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/core"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
)

// OptionsFunc supplies the configured defaults for a named environment
type OptionsFunc func(name string) env.Options

// Server implements PuzzleServiceServer on top of a session manager
type Server struct {
	manager     *session.Manager
	defaults    OptionsFunc
	idempotency *IdempotencyManager
	logger      zerolog.Logger
}

var _ PuzzleServiceServer = (*Server)(nil)

// NewServer creates a puzzle server. A nil defaults func leaves every
// option at the engine defaults.
func NewServer(manager *session.Manager, defaults OptionsFunc, logger zerolog.Logger) *Server {
	if defaults == nil {
		defaults = func(string) env.Options { return env.Options{} }
	}
	s := &Server{
		manager:     manager,
		defaults:    defaults,
		idempotency: NewIdempotencyManager(),
		logger:      logger.With().Str("component", "puzzle_server").Logger(),
	}
	manager.OnEvict(s.idempotency.Forget)
	return s
}

// CreateEnvironment makes a new environment instance
func (s *Server) CreateEnvironment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := createEnvironmentRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Env == "" {
		return nil, status.Error(codes.InvalidArgument, "env is required")
	}

	opts := s.defaults(req.Env)
	if req.Tiles > 0 {
		opts.Tiles = req.Tiles
	}
	if req.StepLimit > 0 {
		opts.StepLimit = req.StepLimit
	}
	if req.SolvableOnly {
		opts.SolvableOnly = true
	}
	if req.Board != "" {
		opts.Board = req.Board
		opts.OptimalSteps = nil
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	if req.FilterEffect != "" {
		opts.FilterEffect = req.FilterEffect
	}

	inst, err := s.manager.Create(req.Env, opts)
	if err != nil {
		return nil, toStatus(err)
	}

	var actionSpace []int
	_ = inst.Do(func(e env.Environment) error {
		actionSpace = e.ActionSpace()
		return nil
	})

	s.logger.Info().
		Str("env_id", inst.ID()).
		Str("env", req.Env).
		Msg("Created environment")

	return encode(CreateEnvironmentResponse{
		EnvID:       inst.ID(),
		Env:         inst.Name(),
		ActionSpace: actionSpace,
	}.toStruct())
}

// Reset starts a new episode
func (s *Server) Reset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := resetRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	inst, err := s.manager.Get(req.EnvID)
	if err != nil {
		return nil, toStatus(err)
	}

	var resp ResetResponse
	err = inst.Do(func(e env.Environment) error {
		obs, info, err := e.Reset(ctx, env.ResetOptions{Seed: req.Seed, Tiles: req.Tiles})
		resp = ResetResponse{Observation: obs, Info: info}
		return err
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(resp.toStruct())
}

// Step applies one action, honouring the idempotency key
func (s *Server) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := stepRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	inst, err := s.manager.Get(req.EnvID)
	if err != nil {
		return nil, toStatus(err)
	}

	var out *structpb.Struct
	err = inst.Do(func(e env.Environment) error {
		if cached := s.idempotency.Check(req.EnvID, req.IdempotencyKey); cached != nil {
			s.logger.Debug().
				Str("env_id", req.EnvID).
				Str("idempotency_key", req.IdempotencyKey).
				Msg("Returning cached step response")
			out = cached
			return nil
		}

		res, err := e.Step(ctx, req.Action)
		if err != nil {
			return err
		}
		out, err = StepResponse{
			Observation: res.Observation,
			Reward:      res.Reward,
			Terminated:  res.Terminated,
			Truncated:   res.Truncated,
			Info:        res.Info,
		}.toStruct()
		if err != nil {
			return fmt.Errorf("failed to encode step response: %w", err)
		}
		s.idempotency.Store(req.EnvID, req.IdempotencyKey, out)
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// Render projects the current grid as text or a base64 PNG
func (s *Server) Render(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := renderRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	mode, ok := env.ParseRenderMode(req.Mode)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported render mode %q", req.Mode)
	}
	inst, err := s.manager.Get(req.EnvID)
	if err != nil {
		return nil, toStatus(err)
	}

	var frame env.Frame
	err = inst.Do(func(e env.Environment) error {
		frame, err = e.Render(mode)
		return err
	})
	if err != nil {
		return nil, toStatus(err)
	}

	resp := RenderResponse{Mode: string(mode), Text: frame.Text}
	if frame.Image != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, frame.Image); err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode frame: %v", err)
		}
		resp.PNGBase64 = base64.StdEncoding.EncodeToString(buf.Bytes())
		resp.Width = frame.Image.Bounds().Dx()
		resp.Height = frame.Image.Bounds().Dy()
	}
	return encode(resp.toStruct())
}

// CloseEnvironment releases an environment
func (s *Server) CloseEnvironment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := closeEnvironmentRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.manager.Close(req.EnvID); err != nil {
		return nil, toStatus(err)
	}
	s.idempotency.Forget(req.EnvID)
	return encode(structpb.NewStruct(map[string]any{"env_id": req.EnvID}))
}

// ListEnvironments reports live environments and registered ids
func (s *Server) ListEnvironments(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	summaries := s.manager.List()
	resp := ListEnvironmentsResponse{
		Environments: make([]EnvironmentSummary, len(summaries)),
		Available:    s.manager.Registry().IDs(),
		MaxEnvs:      s.manager.MaxEnvs(),
	}
	for i, sum := range summaries {
		resp.Environments[i] = summaryFromSession(sum)
	}
	return encode(resp.toStruct())
}

func encode(s *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, core.ErrUnknownEnvironment):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, session.ErrAtCapacity):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, session.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, core.ErrInvalidAction),
		errors.Is(err, core.ErrInvalidBoardDescription),
		errors.Is(err, core.ErrInvalidConfig),
		errors.Is(err, codec.ErrEmptyCatalog),
		errors.Is(err, env.ErrUnsupportedRenderMode),
		errors.Is(err, ErrMalformedRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
