package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet-visualizer/internal/hub"
	"fleet-visualizer/internal/model"
)

// HandleMessage answers websocket messages from map clients: clicking a
// marker or row selects a robot; navigate and control go to the selection.
func (d *Dispatcher) HandleMessage(ctx context.Context, clientID string, msg hub.Inbound) hub.Ack {
	var (
		ack Ack
		err error
	)
	switch msg.Type {
	case hub.TypeSelect:
		id := strings.TrimSpace(msg.ID)
		if id == "" {
			return hub.Ack{OK: false, Msg: "id is required"}
		}
		d.sel.Set(id)
		return hub.Ack{OK: true, Msg: fmt.Sprintf("selected %s", id)}
	case hub.TypeNavigate:
		if msg.Lat == nil || msg.Lng == nil {
			return hub.Ack{OK: false, Msg: "lat and lng are required"}
		}
		ack, err = d.Navigate(ctx, model.Position{Lat: *msg.Lat, Lng: *msg.Lng})
	case hub.TypeControl:
		ack, err = d.Control(ctx, msg.Command)
	default:
		return hub.Ack{OK: false, Msg: fmt.Sprintf("unknown message type %q", msg.Type)}
	}
	if err != nil {
		if errors.Is(err, ErrNoSelection) {
			return hub.Ack{OK: false, Msg: "select a robot first"}
		}
		return hub.Ack{OK: false, Msg: err.Error()}
	}
	return hub.Ack{OK: ack.OK, Msg: ack.Msg}
}
