// Package server serves the dashboard, its websocket feed and the command
// endpoints used by map clients.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fleet-visualizer/internal/dispatch"
	"fleet-visualizer/internal/hub"
	"fleet-visualizer/internal/logging"
	"fleet-visualizer/internal/model"
	"fleet-visualizer/internal/poller"
)

// Server routes dashboard requests.
type Server struct {
	hub       *hub.Hub
	disp      *dispatch.Dispatcher
	stats     func() poller.Stats
	staticDir string
	log       *logging.Logger
}

// Config wires a Server. Stats and StaticDir are optional.
type Config struct {
	Hub        *hub.Hub
	Dispatcher *dispatch.Dispatcher
	Stats      func() poller.Stats
	StaticDir  string
	Logger     *logging.Logger
}

// New returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Hub == nil {
		return nil, errors.New("hub is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	s := &Server{
		hub:       cfg.Hub,
		disp:      cfg.Dispatcher,
		stats:     cfg.Stats,
		staticDir: cfg.StaticDir,
		log:       cfg.Logger,
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /api/markers.geojson", s.handleGeoJSON)
	mux.HandleFunc("GET /api/selection", s.handleGetSelection)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/command/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/command/control", s.handleControl)
	if s.staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.staticDir)))
	}
	return s.withLogging(mux)
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAck(w http.ResponseWriter, status int, ok bool, msg string) {
	writeJSON(w, status, dispatch.Ack{OK: ok, Msg: msg})
}

type healthResponse struct {
	OK      bool          `json:"ok"`
	Clients int           `json:"clients"`
	Markers int           `json:"markers"`
	Poll    *poller.Stats `json:"poll,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{OK: true, Clients: s.hub.Clients(), Markers: len(s.hub.Markers(""))}
	if s.stats != nil {
		st := s.stats()
		resp.Poll = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := s.hub.FeatureCollection(r.URL.Query().Get("layer"))
	data, err := fc.MarshalJSON()
	if err != nil {
		writeAck(w, http.StatusInternalServerError, false, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"id": s.disp.Selection().Get()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAck(w, http.StatusBadRequest, false, "invalid request body")
		return
	}
	id := strings.TrimSpace(rawID(req.ID))
	if id == "" {
		writeAck(w, http.StatusBadRequest, false, "id is required")
		return
	}
	s.disp.Selection().Set(id)
	writeAck(w, http.StatusOK, true, "selected "+id)
}

// rawID accepts ids sent as JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeAck(w, http.StatusBadRequest, false, "lat and lng are required")
		return
	}
	ack, err := s.disp.Navigate(r.Context(), model.Position{Lat: *req.Lat, Lng: *req.Lng})
	s.writeCommandResult(w, ack, err)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAck(w, http.StatusBadRequest, false, "invalid request body")
		return
	}
	ack, err := s.disp.Control(r.Context(), req.Command)
	s.writeCommandResult(w, ack, err)
}

func (s *Server) writeCommandResult(w http.ResponseWriter, ack dispatch.Ack, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNoSelection):
		writeAck(w, http.StatusConflict, false, "select a robot first")
	case err != nil:
		writeAck(w, http.StatusBadRequest, false, err.Error())
	default:
		writeJSON(w, http.StatusOK, ack)
	}
}
