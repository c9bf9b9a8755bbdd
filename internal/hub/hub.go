// Package hub pushes reconciled marker state to browser map clients over
// websockets.
//
// Each named layer of the hub is a reconcile.Surface: creating, moving,
// updating or destroying an element mirrors it into the hub's marker state
// and broadcasts the operation. Newly connected clients receive the full
// state first, so ops may repeat what a client already has; clients apply
// them idempotently.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/model"
	"fleet-visualizer/internal/reconcile"
)

const writeWait = 5 * time.Second

var errDetached = errors.New("marker already removed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler answers inbound client messages.
type Handler interface {
	HandleMessage(ctx context.Context, clientID string, msg Inbound) Ack
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, clientID string, msg Inbound) Ack

func (f HandlerFunc) HandleMessage(ctx context.Context, clientID string, msg Inbound) Ack {
	return f(ctx, clientID, msg)
}

type client struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected clients and the marker state of every layer.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	markers  map[string]map[string]*Marker // layer -> id -> marker
	selected func() string

	handler Handler
	log     *logging.Logger
}

// New returns an empty hub. handler may be nil, in which case inbound
// messages are ignored.
func New(handler Handler, log *logging.Logger) *Hub {
	if log == nil {
		log = logging.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		markers: make(map[string]map[string]*Marker),
		handler: handler,
		log:     log,
	}
}

// SetSelection registers a function reporting the current selection, sent
// to clients on connect.
func (h *Hub) SetSelection(fn func() string) {
	h.mu.Lock()
	h.selected = fn
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade error", "error", err)
		return
	}
	c := &client{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	state := StateMessage{Type: TypeState, Markers: h.markersLocked("")}
	if h.selected != nil {
		state.Selected = h.selected()
	}
	if err := c.write(state); err != nil {
		h.mu.Unlock()
		h.log.Warn("ws initial state failed", "client", c.id, "error", err)
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "client", c.id, "clients", n)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Info("ws client disconnected", "client", c.id)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			h.log.Debug("ignoring ws message", "client", c.id)
			continue
		}
		if h.handler == nil {
			continue
		}
		ack := h.handler.HandleMessage(context.Background(), c.id, msg)
		ack.Type = TypeAck
		if err := c.write(ack); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Broadcast sends v to every client. Clients that fail to receive it are
// dropped.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(v)
}

func (h *Hub) broadcastLocked(v any) {
	for c := range h.clients {
		if err := c.write(v); err != nil {
			h.log.Debug("dropping ws client", "client", c.id, "error", err)
			_ = c.conn.Close()
			delete(h.clients, c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// Markers returns the markers of layer, or of all layers when layer is
// empty, sorted by layer and id.
func (h *Hub) Markers(layer string) []Marker {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.markersLocked(layer)
}

func (h *Hub) markersLocked(layer string) []Marker {
	out := []Marker{}
	for name, ms := range h.markers {
		if layer != "" && name != layer {
			continue
		}
		for _, m := range ms {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Layer returns the surface for the named layer.
func (h *Hub) Layer(name string) reconcile.Surface {
	h.mu.Lock()
	if _, ok := h.markers[name]; !ok {
		h.markers[name] = make(map[string]*Marker)
	}
	h.mu.Unlock()
	return &layer{hub: h, name: name}
}

type layer struct {
	hub  *Hub
	name string
}

type markerHandle struct {
	hub   *Hub
	layer string
	id    string
}

func (l *layer) Create(id string, pos model.Position, content string) (reconcile.Element, error) {
	h := l.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers[l.name][id] = &Marker{Layer: l.name, ID: id, Lat: pos.Lat, Lng: pos.Lng, Content: content}
	h.broadcastLocked(OpMessage{
		Type: TypeOp, Op: OpCreate, Layer: l.name, ID: id,
		Lat: &pos.Lat, Lng: &pos.Lng, Content: &content,
	})
	return &markerHandle{hub: h, layer: l.name, id: id}, nil
}

func (m *markerHandle) Move(pos model.Position) error {
	return m.update(func(mk *Marker) OpMessage {
		mk.Lat, mk.Lng = pos.Lat, pos.Lng
		return OpMessage{Type: TypeOp, Op: OpMove, Layer: m.layer, ID: m.id, Lat: &pos.Lat, Lng: &pos.Lng}
	})
}

func (m *markerHandle) UpdateContent(content string) error {
	return m.update(func(mk *Marker) OpMessage {
		mk.Content = content
		return OpMessage{Type: TypeOp, Op: OpUpdate, Layer: m.layer, ID: m.id, Content: &content}
	})
}

func (m *markerHandle) Destroy() error {
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.markers[m.layer][m.id]; !ok {
		return errDetached
	}
	delete(h.markers[m.layer], m.id)
	h.broadcastLocked(OpMessage{Type: TypeOp, Op: OpDestroy, Layer: m.layer, ID: m.id})
	return nil
}

func (m *markerHandle) update(fn func(*Marker) OpMessage) error {
	h := m.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	mk, ok := h.markers[m.layer][m.id]
	if !ok {
		return errDetached
	}
	h.broadcastLocked(fn(mk))
	return nil
}
