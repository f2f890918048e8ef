package experience

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Experience is one recorded transition of an environment
type Experience struct {
	ID          string
	EnvID       string
	Env         string
	Step        int
	State       [][]string
	Action      []int
	Reward      float64
	NextState   [][]string
	Terminated  bool
	Truncated   bool
	Info        map[string]any
	CollectedAt time.Time
}

// Done reports whether the transition ended its episode
func (e *Experience) Done() bool {
	return e.Terminated || e.Truncated
}

// ToStruct converts the experience to a protobuf Struct for JSON encoding
func (e *Experience) ToStruct() (*structpb.Struct, error) {
	action := make([]any, len(e.Action))
	for i, a := range e.Action {
		action[i] = a
	}
	info := e.Info
	if info == nil {
		info = map[string]any{}
	}
	return structpb.NewStruct(map[string]any{
		"experience_id": e.ID,
		"env_id":        e.EnvID,
		"env":           e.Env,
		"step":          e.Step,
		"state":         GridToList(e.State),
		"action":        action,
		"reward":        e.Reward,
		"next_state":    GridToList(e.NextState),
		"terminated":    e.Terminated,
		"truncated":     e.Truncated,
		"info":          info,
		"collected_at":  e.CollectedAt.UTC().Format(time.RFC3339Nano),
	})
}

// FromStruct decodes an experience written by ToStruct
func FromStruct(s *structpb.Struct) (*Experience, error) {
	fields := s.GetFields()
	exp := &Experience{
		ID:         fields["experience_id"].GetStringValue(),
		EnvID:      fields["env_id"].GetStringValue(),
		Env:        fields["env"].GetStringValue(),
		Step:       int(fields["step"].GetNumberValue()),
		State:      ListToGrid(fields["state"].GetListValue()),
		Reward:     fields["reward"].GetNumberValue(),
		NextState:  ListToGrid(fields["next_state"].GetListValue()),
		Terminated: fields["terminated"].GetBoolValue(),
		Truncated:  fields["truncated"].GetBoolValue(),
		Info:       fields["info"].GetStructValue().AsMap(),
	}
	for _, v := range fields["action"].GetListValue().GetValues() {
		exp.Action = append(exp.Action, int(v.GetNumberValue()))
	}
	if ts := fields["collected_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid collected_at: %w", err)
		}
		exp.CollectedAt = t
	}
	return exp, nil
}

// GridToList converts a grid to the nested list form structpb accepts
func GridToList(grid [][]string) []any {
	rows := make([]any, len(grid))
	for r, row := range grid {
		cells := make([]any, len(row))
		for c, cell := range row {
			cells[c] = cell
		}
		rows[r] = cells
	}
	return rows
}

// ListToGrid is the inverse of GridToList
func ListToGrid(list *structpb.ListValue) [][]string {
	if list == nil {
		return nil
	}
	grid := make([][]string, len(list.GetValues()))
	for r, row := range list.GetValues() {
		for _, cell := range row.GetListValue().GetValues() {
			grid[r] = append(grid[r], cell.GetStringValue())
		}
	}
	return grid
}
