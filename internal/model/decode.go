package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecodeSnapshot decodes a JSON array of entity objects. The array itself
// must be well formed; individual elements are decoded leniently and an
// element that is not an object yields an Entity without an id, which the
// reconciler skips.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("entity list: missing")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("entity list: %w", err)
	}
	snap := make(Snapshot, 0, len(items))
	for _, it := range items {
		m, _ := it.(map[string]any)
		snap = append(snap, EntityFromMap(m))
	}
	return snap, nil
}

// EntityFromMap normalizes one decoded entity object. The id comes from "id"
// and falls back to "device_id"; numeric ids are rendered without a fraction.
// The position is set only when both coordinates are present and parse.
// Every other scalar key becomes a display field.
func EntityFromMap(m map[string]any) Entity {
	if m == nil {
		return Entity{}
	}
	e := Entity{Fields: make(map[string]string, len(m))}

	e.ID = stringFrom(m["id"])
	if e.ID == "" {
		e.ID = stringFrom(m["device_id"])
	}

	lat, okLat := floatFrom(m["lat"])
	lng, okLng := floatFrom(m["lng"])
	if !okLng {
		lng, okLng = floatFrom(m["lon"])
	}
	if okLat && okLng {
		e.Position = &Position{Lat: lat, Lng: lng}
	}

	for k, v := range m {
		switch k {
		case "id", "lat", "lng", "lon":
			continue
		case FieldTarget:
			if t, ok := v.(map[string]any); ok {
				tl, ok1 := floatFrom(t["lat"])
				tg, ok2 := floatFrom(t["lng"])
				if ok1 && ok2 {
					e.Fields[FieldTarget] = Position{Lat: tl, Lng: tg}.String()
				}
			}
			continue
		}
		if s := stringFrom(v); s != "" {
			e.Fields[k] = s
		}
	}
	return e
}

func stringFrom(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := x.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func floatFrom(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
