package hub

import "fleet-visualizer/internal/model"

// Message types.
const (
	TypeOp        = "op"
	TypeState     = "state"
	TypeAck       = "ack"
	TypeSummary   = "summary"
	TypeSelection = "selection"

	TypeSelect   = "select"
	TypeNavigate = "navigate"
	TypeControl  = "control"
)

// Marker operations.
const (
	OpCreate  = "create"
	OpMove    = "move"
	OpUpdate  = "update"
	OpDestroy = "destroy"
)

// Marker is the browser-side state of one visual element.
type Marker struct {
	Layer   string  `json:"layer"`
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Content string  `json:"content"`
}

// OpMessage tells clients to change one marker.
type OpMessage struct {
	Type    string   `json:"type"`
	Op      string   `json:"op"`
	Layer   string   `json:"layer"`
	ID      string   `json:"id"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Content *string  `json:"content,omitempty"`
}

// StateMessage is sent once to a newly connected client.
type StateMessage struct {
	Type     string   `json:"type"`
	Markers  []Marker `json:"markers"`
	Selected string   `json:"selected,omitempty"`
}

// SummaryMessage carries chart data for the dashboard.
type SummaryMessage struct {
	Type    string        `json:"type"`
	Seq     uint64        `json:"seq"`
	Summary model.Summary `json:"summary"`
}

// SelectionMessage announces the selected robot to all clients.
type SelectionMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Ack answers one inbound message, to the sender only.
type Ack struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
	Msg  string `json:"msg"`
}

// Inbound is a message sent by a browser client: select a robot by clicking
// its marker or row, or send a command to the selected robot.
type Inbound struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Command string   `json:"command,omitempty"`
}
