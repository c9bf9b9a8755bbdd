// Package model holds the normalized entity types shared by feed sources,
// the reconciler and the rendering surfaces.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
)

// ErrInvalidPosition is returned when coordinates are missing, not finite or
// out of range.
var ErrInvalidPosition = errors.New("invalid position")

// Position is a WGS84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p can be placed on a map.
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Point returns p as an orb point (x = longitude, y = latitude).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// Validate returns ErrInvalidPosition when p is not placeable.
func (p Position) Validate() error {
	if !p.Valid() {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, p.Lat, p.Lng)
	}
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
}

// Entity is a robot or point of interest as seen in one snapshot.
// Position is nil when the entity is not placeable.
type Entity struct {
	ID       string            `json:"id"`
	Position *Position         `json:"position,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Placeable reports whether the entity carries a valid position.
func (e Entity) Placeable() bool {
	return e.Position != nil && e.Position.Valid()
}

// Field returns the display field for key, or "" when absent.
func (e Entity) Field(key string) string {
	return e.Fields[key]
}

// Snapshot is one polled batch of entities, in feed order.
type Snapshot []Entity

// Well-known display field keys.
const (
	FieldName          = "name"
	FieldDeviceID      = "device_id"
	FieldStatus        = "status"
	FieldBattery       = "battery"
	FieldIPAddress     = "ip_address"
	FieldLastHeartbeat = "last_heartbeat"
	FieldTarget        = "target"
	FieldTrashTypes    = "trash_types"
)

// StatusOnline is the status reported by robots with a recent heartbeat.
const StatusOnline = "ONLINE"

// FormatContent renders the popup/row text for an entity. Robots show name,
// device id and status with battery; points of interest show their detected
// trash types. Remaining fields are appended in key order.
func FormatContent(e Entity) string {
	var lines []string
	used := map[string]bool{}
	take := func(k string) string {
		used[k] = true
		return e.Fields[k]
	}

	if name := take(FieldName); name != "" {
		lines = append(lines, name)
	}
	if did := take(FieldDeviceID); did != "" {
		lines = append(lines, did)
	}
	status := take(FieldStatus)
	battery := take(FieldBattery)
	if battery != "" {
		battery += "%"
	}
	if s := strings.TrimSpace(status + " " + battery); s != "" {
		lines = append(lines, s)
	}
	if tt := take(FieldTrashTypes); tt != "" {
		lines = append(lines, "detected: "+tt)
	}

	rest := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if !used[k] && e.Fields[k] != "" {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		lines = append(lines, k+": "+e.Fields[k])
	}
	return strings.Join(lines, "\n")
}
