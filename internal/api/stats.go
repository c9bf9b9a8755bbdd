package api

import (
	"context"
	"encoding/json"
	"fmt"

	"fleet-visualizer/internal/model"
)

// SummaryResponse is the decoded /api/stats/summary payload. Robots and
// Locations are nil when the backend omits the field, and empty when it
// sends an empty list.
type SummaryResponse struct {
	Summary   model.Summary
	Robots    model.Snapshot
	Locations model.Snapshot
}

// Summary fetches chart data plus the robot and location lists.
func (c *Client) Summary(ctx context.Context) (*SummaryResponse, error) {
	const path = "/api/stats/summary"
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		OK        *bool           `json:"ok"`
		Pie       []model.Slice   `json:"pie_data"`
		Line      model.Series    `json:"line_data"`
		RobotList json.RawMessage `json:"robot_list"`
		Locations json.RawMessage `json:"locations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if raw.OK == nil {
		return nil, fmt.Errorf("%s: missing ok field", path)
	}
	if !*raw.OK {
		return nil, fmt.Errorf("%s: %w", path, ErrNotOK)
	}

	out := &SummaryResponse{Summary: model.Summary{Pie: raw.Pie, Line: raw.Line}}
	if out.Robots, err = optionalSnapshot(raw.RobotList); err != nil {
		return nil, fmt.Errorf("%s: robot_list: %w", path, err)
	}
	if out.Locations, err = optionalSnapshot(raw.Locations); err != nil {
		return nil, fmt.Errorf("%s: locations: %w", path, err)
	}
	return out, nil
}

// Robots fetches /api/robot/list.
func (c *Client) Robots(ctx context.Context) (model.Snapshot, error) {
	const path = "/api/robot/list"
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		OK     *bool           `json:"ok"`
		Robots json.RawMessage `json:"robots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if raw.OK == nil {
		return nil, fmt.Errorf("%s: missing ok field", path)
	}
	if !*raw.OK {
		return nil, fmt.Errorf("%s: %w", path, ErrNotOK)
	}
	snap, err := model.DecodeSnapshot(raw.Robots)
	if err != nil {
		return nil, fmt.Errorf("%s: robots: %w", path, err)
	}
	return snap, nil
}

func optionalSnapshot(raw json.RawMessage) (model.Snapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	snap, err := model.DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = model.Snapshot{}
	}
	return snap, nil
}
