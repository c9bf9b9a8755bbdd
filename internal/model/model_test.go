package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"origin", Position{0, 0}, true},
		{"typical", Position{30.5, 110.5}, true},
		{"bounds", Position{-90, 180}, true},
		{"lat too high", Position{90.1, 0}, false},
		{"lng too low", Position{0, -180.5}, false},
		{"nan", Position{math.NaN(), 1}, false},
		{"inf", Position{1, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.Valid())
			if tt.want {
				assert.NoError(t, tt.pos.Validate())
			} else {
				assert.ErrorIs(t, tt.pos.Validate(), ErrInvalidPosition)
			}
		})
	}
}

func TestPosition_Point(t *testing.T) {
	t.Parallel()

	p := Position{Lat: 30, Lng: 110}.Point()
	assert.Equal(t, 110.0, p.Lon())
	assert.Equal(t, 30.0, p.Lat())
}

func TestDecodeSnapshot(t *testing.T) {
	t.Parallel()

	data := `[
		{"id": 1, "device_id": "dev-1", "name": "Alpha", "status": "ONLINE", "battery": 87, "lat": 30.1, "lng": 110.2},
		{"device_id": "dev-2", "name": "Beta", "lat": "31.5", "lng": "111.5"},
		{"id": "r3", "name": "Gamma", "lat": null, "lng": 112},
		{"name": "no id", "lat": 1, "lng": 2},
		"garbage",
		{"id": 7, "lat": 1, "lon": 2, "target": {"lat": 3, "lng": 4}}
	]`

	snap, err := DecodeSnapshot([]byte(data))
	require.NoError(t, err)
	require.Len(t, snap, 6)

	assert.Equal(t, "1", snap[0].ID)
	require.NotNil(t, snap[0].Position)
	assert.Equal(t, Position{30.1, 110.2}, *snap[0].Position)
	assert.Equal(t, "87", snap[0].Field(FieldBattery))
	assert.Equal(t, "dev-1", snap[0].Field(FieldDeviceID))
	assert.NotContains(t, snap[0].Fields, "id")

	assert.Equal(t, "dev-2", snap[1].ID)
	require.NotNil(t, snap[1].Position)
	assert.Equal(t, 31.5, snap[1].Position.Lat)

	assert.Equal(t, "r3", snap[2].ID)
	assert.Nil(t, snap[2].Position)
	assert.False(t, snap[2].Placeable())

	assert.Empty(t, snap[3].ID)
	assert.Empty(t, snap[4].ID)

	assert.Equal(t, "7", snap[5].ID)
	require.NotNil(t, snap[5].Position)
	assert.Equal(t, 2.0, snap[5].Position.Lng)
	assert.Equal(t, "3.00000,4.00000", snap[5].Field(FieldTarget))
}

func TestDecodeSnapshot_IntegralIDsMatch(t *testing.T) {
	t.Parallel()

	snap, err := DecodeSnapshot([]byte(`[{"id": 1.0}, {"id": 1}, {"id": 2.5}, {"id": 9007199254740993}]`))
	require.NoError(t, err)
	require.Len(t, snap, 4)

	assert.Equal(t, "1", snap[0].ID)
	assert.Equal(t, snap[0].ID, snap[1].ID)
	assert.Equal(t, "2.5", snap[2].ID)
	assert.Equal(t, "9007199254740993", snap[3].ID)
}

func TestDecodeSnapshot_Malformed(t *testing.T) {
	t.Parallel()

	_, err := DecodeSnapshot([]byte(`{"id": 1}`))
	assert.Error(t, err)

	_, err = DecodeSnapshot(nil)
	assert.Error(t, err)

	snap, err := DecodeSnapshot([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFormatContent(t *testing.T) {
	t.Parallel()

	e := Entity{ID: "1", Fields: map[string]string{
		FieldName:      "Alpha",
		FieldDeviceID:  "dev-1",
		FieldStatus:    StatusOnline,
		FieldBattery:   "80",
		FieldIPAddress: "10.0.0.2",
	}}
	assert.Equal(t, "Alpha\ndev-1\nONLINE 80%\nip_address: 10.0.0.2", FormatContent(e))

	poi := Entity{ID: "9", Fields: map[string]string{FieldTrashTypes: "bottle"}}
	assert.Equal(t, "detected: bottle", FormatContent(poi))

	assert.Empty(t, FormatContent(Entity{ID: "x"}))
}

func TestSummary_Total(t *testing.T) {
	t.Parallel()

	s := Summary{Pie: []Slice{{"bottle", 3}, {"can", 2}}}
	assert.Equal(t, 5.0, s.Total())
}
