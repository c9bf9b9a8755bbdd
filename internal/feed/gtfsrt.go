package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"fleet-visualizer/internal/model"
)

// GtfsRtSource reads robot positions from a GTFS-Realtime VehiclePositions
// feed, as published by fleet gateways that speak GTFS-RT. Each vehicle
// becomes a robot keyed by its vehicle descriptor id.
type GtfsRtSource struct {
	url        string
	httpClient *http.Client
}

func NewGtfsRtSource(url string, timeout time.Duration) *GtfsRtSource {
	return &GtfsRtSource{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *GtfsRtSource) Fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Frame{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("gtfs-rt http status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, err
	}
	robots, err := DecodeGtfsRt(body)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Layers: map[string]model.Snapshot{LayerRobots: robots}}, nil
}

// DecodeGtfsRt converts a serialized FeedMessage into a robot snapshot.
// Entities without a vehicle descriptor id are kept with an empty id so the
// reconciler can account for them; vehicles without a position are kept
// unplaced.
func DecodeGtfsRt(body []byte) (model.Snapshot, error) {
	var msg gtfs.FeedMessage
	if err := proto.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("gtfs-rt decode: %w", err)
	}
	robots := make(model.Snapshot, 0, len(msg.Entity))
	for _, ent := range msg.Entity {
		if ent == nil || ent.Vehicle == nil {
			continue
		}
		vp := ent.Vehicle
		e := model.Entity{Fields: map[string]string{}}
		if vd := vp.GetVehicle(); vd != nil {
			e.ID = vd.GetId()
			if l := vd.GetLabel(); l != "" {
				e.Fields[model.FieldName] = l
			}
		}
		if p := vp.GetPosition(); p != nil {
			e.Position = &model.Position{Lat: float64(p.GetLatitude()), Lng: float64(p.GetLongitude())}
		}
		if ts := vp.GetTimestamp(); ts != 0 {
			e.Fields[model.FieldLastHeartbeat] = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
		}
		if vp.CurrentStatus != nil {
			e.Fields[model.FieldStatus] = vp.GetCurrentStatus().String()
		}
		robots = append(robots, e)
	}
	return robots, nil
}
