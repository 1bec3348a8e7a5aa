package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/guidoenr/neuroflow/internal/engine"
	"github.com/guidoenr/neuroflow/internal/events"
)

//go:embed static
var staticFiles embed.FS

// Controller is the part of the engine the server drives.
type Controller interface {
	Start() error
	Stop()
	Restart()
	UpdateParameter(key string, value float64) (float64, bool)
	SelectProfile(id string) bool
	SetMasterVolume(v float64)
	MasterVolume() float64
	Profiles() []string
	Status() engine.Status
}

// Config configures the control server.
type Config struct {
	Addr           string
	StatusInterval time.Duration
	// WebDir overrides the embedded UI with files on disk.
	WebDir string
	Log    logrus.FieldLogger
}

type Server struct {
	cfg       Config
	ctrl      Controller
	events    *events.Broadcaster
	log       logrus.FieldLogger
	mux       *http.ServeMux
	mu        sync.RWMutex
	clients   map[*websocketClient]bool
	broadcast chan []byte
	upgrader  websocket.Upgrader
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// StatusMessage is pushed to websocket clients every status interval.
type StatusMessage struct {
	Type string `json:"type"`
	engine.Status
}

type ParamRequest struct {
	Key   string   `json:"key"`
	Value *float64 `json:"value"`
}

type ParamResponse struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

type ProfileRequest struct {
	ID string `json:"id"`
}

type MasterRequest struct {
	Volume *float64 `json:"volume"`
}

// NewServer builds the control server. Events published on bus are
// forwarded to every websocket client.
func NewServer(ctrl Controller, bus *events.Broadcaster, cfg Config) *Server {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 500 * time.Millisecond
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		events:    bus,
		log:       cfg.Log.WithField("component", "web"),
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.mux = s.routes()
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(s.webRoot())))
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/restart", s.handleRestart)
	mux.HandleFunc("/api/param", s.handleParam)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/master", s.handleMaster)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Handler returns the HTTP handler without starting any loop.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) webRoot() fs.FS {
	if dir := findWebDir(s.cfg.WebDir); dir != "" {
		return os.DirFS(dir)
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

func findWebDir(override string) string {
	candidates := []string{override}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "web"))
	}
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			return dir
		}
	}
	return ""
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.mux}
	loops, cancel := context.WithCancel(ctx)
	defer cancel()
	s.startLoops(loops)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("server starting on http://%s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		s.closeClients()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) startLoops(ctx context.Context) {
	go s.broadcastLoop(ctx)
	go s.statusUpdateLoop(ctx)
	go s.eventLoop(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.ctrl.Start(); err != nil {
		s.log.WithError(err).Error("start")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.ctrl.Restart()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

func (s *Server) handleParam(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req ParamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Key == "" || req.Value == nil {
		http.Error(w, "key and value are required", http.StatusBadRequest)
		return
	}
	stored, _ := s.ctrl.UpdateParameter(req.Key, *req.Value)
	writeJSON(w, http.StatusOK, ParamResponse{Key: req.Key, Value: stored})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.ctrl.SelectProfile(req.ID) {
		http.Error(w, "unknown profile", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Profiles())
}

func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req MasterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Volume == nil {
		http.Error(w, "volume is required", http.StatusBadRequest)
		return
	}
	s.ctrl.SetMasterVolume(*req.Volume)
	writeJSON(w, http.StatusOK, map[string]float64{"volume": s.ctrl.MasterVolume()})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade")
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Clients reports how many websocket clients are connected.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) publish(data []byte) {
	select {
	case s.broadcast <- data:
	default:
		// drop if channel full (non-blocking)
	}
}

func (s *Server) statusUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(StatusMessage{Type: "status", Status: s.ctrl.Status()})
			if err != nil {
				s.log.WithError(err).Warn("encode status")
				continue
			}
			s.publish(data)
		}
	}
}

func (s *Server) eventLoop(ctx context.Context) {
	if s.events == nil {
		return
	}
	ch, cancel := s.events.Subscribe(64)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.Marshal(ev)
			if err != nil {
				s.log.WithError(err).Warn("encode event")
				continue
			}
			s.publish(data)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one message per frame so clients can JSON.parse each one
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
