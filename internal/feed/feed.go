// Package feed adapts backend endpoints into per-layer entity snapshots.
package feed

import (
	"context"

	"fleet-visualizer/internal/api"
	"fleet-visualizer/internal/model"
)

// Layer names.
const (
	LayerRobots    = "robots"
	LayerLocations = "locations"
)

// Frame is the result of one fetch. A layer missing from Layers was not
// provided by the source; a layer present with an empty snapshot means the
// source reports no entities.
type Frame struct {
	Layers  map[string]model.Snapshot
	Summary *model.Summary
}

// Layer returns the snapshot for name and whether the source provided it.
func (f Frame) Layer(name string) (model.Snapshot, bool) {
	s, ok := f.Layers[name]
	return s, ok
}

// Source fetches one frame.
type Source interface {
	Fetch(ctx context.Context) (Frame, error)
}

// SummarySource polls /api/stats/summary, which carries chart data and,
// depending on the backend version, robot and location lists.
type SummarySource struct {
	client *api.Client
}

func NewSummarySource(client *api.Client) *SummarySource {
	return &SummarySource{client: client}
}

func (s *SummarySource) Fetch(ctx context.Context) (Frame, error) {
	resp, err := s.client.Summary(ctx)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Layers: make(map[string]model.Snapshot, 2), Summary: &resp.Summary}
	if resp.Robots != nil {
		f.Layers[LayerRobots] = resp.Robots
	}
	if resp.Locations != nil {
		f.Layers[LayerLocations] = resp.Locations
	}
	return f, nil
}

// RobotListSource polls /api/robot/list.
type RobotListSource struct {
	client *api.Client
}

func NewRobotListSource(client *api.Client) *RobotListSource {
	return &RobotListSource{client: client}
}

func (s *RobotListSource) Fetch(ctx context.Context) (Frame, error) {
	robots, err := s.client.Robots(ctx)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Layers: map[string]model.Snapshot{LayerRobots: robots}}, nil
}
