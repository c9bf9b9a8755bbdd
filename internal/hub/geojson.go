package hub

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the markers of layer (all layers when empty)
// as GeoJSON points.
func (h *Hub) FeatureCollection(layer string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range h.Markers(layer) {
		f := geojson.NewFeature(orb.Point{m.Lng, m.Lat})
		f.ID = m.ID
		f.Properties["layer"] = m.Layer
		f.Properties["id"] = m.ID
		f.Properties["content"] = m.Content
		fc.Append(f)
	}
	return fc
}
