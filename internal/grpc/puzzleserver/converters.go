package puzzleserver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/env"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/experience"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/session"
)

// ErrMalformedRequest is returned when a request struct has a field of the
// wrong type
var ErrMalformedRequest = errors.New("malformed request")

// CreateEnvironmentRequest selects a registered environment. Zero fields
// keep the server's configured defaults.
type CreateEnvironmentRequest struct {
	Env          string
	Tiles        int
	StepLimit    int
	SolvableOnly bool
	Board        string
	Seed         int64
	FilterEffect string
}

type CreateEnvironmentResponse struct {
	EnvID       string
	Env         string
	ActionSpace []int
}

// ResetRequest restarts an episode. Tiles overrides the sliding shuffle.
type ResetRequest struct {
	EnvID string
	Seed  *int64
	Tiles []int
}

type ResetResponse struct {
	Observation env.Observation
	Info        env.Info
}

// StepRequest applies one action. A repeated non-empty IdempotencyKey for
// the same environment returns the first response without stepping again.
type StepRequest struct {
	EnvID          string
	Action         []int
	IdempotencyKey string
}

type StepResponse struct {
	Observation env.Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        env.Info
}

type RenderRequest struct {
	EnvID string
	Mode  string
}

// RenderResponse holds Text for text mode, or a base64 PNG for rgb mode
type RenderResponse struct {
	Mode      string
	Text      string
	PNGBase64 string
	Width     int
	Height    int
}

type CloseEnvironmentRequest struct {
	EnvID string
}

// EnvironmentSummary describes a live environment. AwaitingReset marks a
// sliding puzzle that has not been reset yet, whose flags are both set.
type EnvironmentSummary struct {
	EnvID         string
	Env           string
	Steps         int
	Terminated    bool
	Truncated     bool
	AwaitingReset bool
	CreatedAt     time.Time
	LastActivity  time.Time
}

type ListEnvironmentsResponse struct {
	Environments []EnvironmentSummary
	Available    []string
	MaxEnvs      int
}

func summaryFromSession(s session.Summary) EnvironmentSummary {
	return EnvironmentSummary{
		EnvID:         s.ID,
		Env:           s.Name,
		Steps:         s.Steps,
		Terminated:    s.Terminated,
		Truncated:     s.Truncated,
		AwaitingReset: s.AwaitingReset(),
		CreatedAt:     s.CreatedAt,
		LastActivity:  s.LastActivity,
	}
}

// Encoding

func (r CreateEnvironmentRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env":           r.Env,
		"tiles":         r.Tiles,
		"step_limit":    r.StepLimit,
		"solvable_only": r.SolvableOnly,
		"board":         r.Board,
		"seed":          r.Seed,
		"filter_effect": r.FilterEffect,
	})
}

func (r CreateEnvironmentResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env_id":       r.EnvID,
		"env":          r.Env,
		"action_space": intsToList(r.ActionSpace),
	})
}

func (r ResetRequest) toStruct() (*structpb.Struct, error) {
	m := map[string]any{"env_id": r.EnvID}
	if r.Seed != nil {
		m["seed"] = *r.Seed
	}
	if r.Tiles != nil {
		m["tiles"] = intsToList(r.Tiles)
	}
	return structpb.NewStruct(m)
}

func (r ResetResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"observation": experience.GridToList(r.Observation),
		"info":        map[string]any(r.Info),
	})
}

func (r StepRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env_id":          r.EnvID,
		"action":          intsToList(r.Action),
		"idempotency_key": r.IdempotencyKey,
	})
}

func (r StepResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"observation": experience.GridToList(r.Observation),
		"reward":      r.Reward,
		"terminated":  r.Terminated,
		"truncated":   r.Truncated,
		"info":        map[string]any(r.Info),
	})
}

func (r RenderRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"env_id": r.EnvID,
		"mode":   r.Mode,
	})
}

func (r RenderResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"mode":       r.Mode,
		"text":       r.Text,
		"png_base64": r.PNGBase64,
		"width":      r.Width,
		"height":     r.Height,
	})
}

func (r CloseEnvironmentRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"env_id": r.EnvID})
}

func (r ListEnvironmentsResponse) toStruct() (*structpb.Struct, error) {
	envs := make([]any, len(r.Environments))
	for i, e := range r.Environments {
		envs[i] = map[string]any{
			"env_id":         e.EnvID,
			"env":            e.Env,
			"steps":          e.Steps,
			"terminated":     e.Terminated,
			"truncated":      e.Truncated,
			"awaiting_reset": e.AwaitingReset,
			"created_at":     e.CreatedAt.UTC().Format(time.RFC3339Nano),
			"last_activity":  e.LastActivity.UTC().Format(time.RFC3339Nano),
		}
	}
	available := make([]any, len(r.Available))
	for i, id := range r.Available {
		available[i] = id
	}
	return structpb.NewStruct(map[string]any{
		"environments": envs,
		"available":    available,
		"max_envs":     r.MaxEnvs,
	})
}

// Decoding

func createEnvironmentRequestFromStruct(s *structpb.Struct) (CreateEnvironmentRequest, error) {
	m := s.AsMap()
	var r CreateEnvironmentRequest
	var err error
	if r.Env, err = getString(m, "env"); err != nil {
		return r, err
	}
	if r.Tiles, _, err = getInt(m, "tiles"); err != nil {
		return r, err
	}
	if r.StepLimit, _, err = getInt(m, "step_limit"); err != nil {
		return r, err
	}
	if r.SolvableOnly, err = getBool(m, "solvable_only"); err != nil {
		return r, err
	}
	if r.Board, err = getString(m, "board"); err != nil {
		return r, err
	}
	if r.FilterEffect, err = getString(m, "filter_effect"); err != nil {
		return r, err
	}
	seed, _, err := getInt(m, "seed")
	r.Seed = int64(seed)
	return r, err
}

func createEnvironmentResponseFromStruct(s *structpb.Struct) (CreateEnvironmentResponse, error) {
	m := s.AsMap()
	var r CreateEnvironmentResponse
	var err error
	if r.EnvID, err = getString(m, "env_id"); err != nil {
		return r, err
	}
	if r.Env, err = getString(m, "env"); err != nil {
		return r, err
	}
	r.ActionSpace, err = getInts(m, "action_space")
	return r, err
}

func resetRequestFromStruct(s *structpb.Struct) (ResetRequest, error) {
	m := s.AsMap()
	var r ResetRequest
	var err error
	if r.EnvID, err = getString(m, "env_id"); err != nil {
		return r, err
	}
	seed, ok, err := getInt(m, "seed")
	if err != nil {
		return r, err
	}
	if ok {
		v := int64(seed)
		r.Seed = &v
	}
	r.Tiles, err = getInts(m, "tiles")
	return r, err
}

func resetResponseFromStruct(s *structpb.Struct) (ResetResponse, error) {
	var r ResetResponse
	var err error
	if r.Observation, err = getGrid(s, "observation"); err != nil {
		return r, err
	}
	r.Info, err = getInfo(s.AsMap(), "info")
	return r, err
}

func stepRequestFromStruct(s *structpb.Struct) (StepRequest, error) {
	m := s.AsMap()
	var r StepRequest
	var err error
	if r.EnvID, err = getString(m, "env_id"); err != nil {
		return r, err
	}
	if r.Action, err = getInts(m, "action"); err != nil {
		return r, err
	}
	r.IdempotencyKey, err = getString(m, "idempotency_key")
	return r, err
}

func stepResponseFromStruct(s *structpb.Struct) (StepResponse, error) {
	m := s.AsMap()
	var r StepResponse
	var err error
	if r.Observation, err = getGrid(s, "observation"); err != nil {
		return r, err
	}
	reward, ok := m["reward"].(float64)
	if !ok {
		return r, fmt.Errorf("%w: reward must be a number", ErrMalformedRequest)
	}
	r.Reward = reward
	if r.Terminated, err = getBool(m, "terminated"); err != nil {
		return r, err
	}
	if r.Truncated, err = getBool(m, "truncated"); err != nil {
		return r, err
	}
	r.Info, err = getInfo(m, "info")
	return r, err
}

func renderRequestFromStruct(s *structpb.Struct) (RenderRequest, error) {
	m := s.AsMap()
	var r RenderRequest
	var err error
	if r.EnvID, err = getString(m, "env_id"); err != nil {
		return r, err
	}
	r.Mode, err = getString(m, "mode")
	return r, err
}

func renderResponseFromStruct(s *structpb.Struct) (RenderResponse, error) {
	m := s.AsMap()
	var r RenderResponse
	var err error
	if r.Mode, err = getString(m, "mode"); err != nil {
		return r, err
	}
	if r.Text, err = getString(m, "text"); err != nil {
		return r, err
	}
	if r.PNGBase64, err = getString(m, "png_base64"); err != nil {
		return r, err
	}
	if r.Width, _, err = getInt(m, "width"); err != nil {
		return r, err
	}
	r.Height, _, err = getInt(m, "height")
	return r, err
}

func closeEnvironmentRequestFromStruct(s *structpb.Struct) (CloseEnvironmentRequest, error) {
	id, err := getString(s.AsMap(), "env_id")
	return CloseEnvironmentRequest{EnvID: id}, err
}

func listEnvironmentsResponseFromStruct(s *structpb.Struct) (ListEnvironmentsResponse, error) {
	m := s.AsMap()
	var r ListEnvironmentsResponse
	var err error
	if r.MaxEnvs, _, err = getInt(m, "max_envs"); err != nil {
		return r, err
	}
	if raw, ok := m["available"].([]any); ok {
		for _, v := range raw {
			if id, ok := v.(string); ok {
				r.Available = append(r.Available, id)
			}
		}
	}
	raw, _ := m["environments"].([]any)
	for _, v := range raw {
		em, ok := v.(map[string]any)
		if !ok {
			return r, fmt.Errorf("%w: environments entries must be objects", ErrMalformedRequest)
		}
		var e EnvironmentSummary
		e.EnvID, _ = getString(em, "env_id")
		e.Env, _ = getString(em, "env")
		e.Steps, _, _ = getInt(em, "steps")
		e.Terminated, _ = getBool(em, "terminated")
		e.Truncated, _ = getBool(em, "truncated")
		e.AwaitingReset, _ = getBool(em, "awaiting_reset")
		if ts, _ := getString(em, "created_at"); ts != "" {
			e.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		if ts, _ := getString(em, "last_activity"); ts != "" {
			e.LastActivity, _ = time.Parse(time.RFC3339Nano, ts)
		}
		r.Environments = append(r.Environments, e)
	}
	return r, nil
}

// Field helpers. Missing fields decode to zero values.

func getString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedRequest, key)
	}
	return s, nil
}

func getBool(m map[string]any, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a bool", ErrMalformedRequest, key)
	}
	return b, nil
}

func getInt(m map[string]any, key string) (int, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s %v", ErrMalformedRequest, key, err)
	}
	return n, true, nil
}

func getInts(m map[string]any, key string) ([]int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrMalformedRequest, key)
	}
	out := make([]int, len(list))
	for i, item := range list {
		n, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d] %v", ErrMalformedRequest, key, i, err)
		}
		out[i] = n
	}
	return out, nil
}

func toInt(v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("must be a number")
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be an integer, got %v", f)
	}
	return int(f), nil
}

func getGrid(s *structpb.Struct, key string) (env.Observation, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s must be a list of rows", ErrMalformedRequest, key)
	}
	return env.Observation(experience.ListToGrid(list)), nil
}

// getInfo restores integral numbers to int so info maps compare equal to
// what the environment produced.
func getInfo(m map[string]any, key string) (env.Info, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return env.Info{}, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", ErrMalformedRequest, key)
	}
	info := make(env.Info, len(raw))
	for k, val := range raw {
		if f, ok := val.(float64); ok && f == math.Trunc(f) {
			info[k] = int(f)
			continue
		}
		info[k] = val
	}
	return info, nil
}

func intsToList(ints []int) []any {
	out := make([]any, len(ints))
	for i, n := range ints {
		out[i] = n
	}
	return out
}
