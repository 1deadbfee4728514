package socketserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/orchestrator"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/progress"
)

// Server is the local HTTP bridge between the browser UI and the
// orchestrator: chat goes over POST, progress fans out over WebSocket.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	ctrl     *orchestrator.Controller
	snapshot func() *dataset.Dataset
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	// turnMu serializes turns: the controller runs one at a time.
	turnMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewServer creates the bridge around one controller.
func NewServer(cfg *config.Config, ctrl *orchestrator.Controller, snapshot func() *dataset.Dataset) *Server {
	return &Server{
		cfg:      cfg,
		hub:      NewHub(),
		ctrl:     ctrl,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge binds to loopback; the page is served locally.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *httprouter.Router {
	router := httprouter.New()
	router.POST("/api/chat", s.handleChat)
	router.GET("/api/health", s.handleHealth)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// Start begins serving on the configured listen address. It returns once the
// listener is bound; the accept loop runs until Stop or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener

	serveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(serveCtx)
	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped: %v", err)
		}
	}()
	go func() {
		<-serveCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.running = true
	logger.Info("Bridge listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, useful when the port was chosen by the OS.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and waits for the serve loop to exit.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// handleChat runs one turn. Progress is mirrored to the hub as it happens;
// the final reply travels both on the HTTP response and as a reply frame.
// Closing the HTTP request aborts the turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	sessionID := s.ctrl.Session().ID
	reply, err := s.ctrl.SendMessage(r.Context(), req.Message, &orchestrator.Options{
		Streaming: req.Streaming,
		Progress: func(ev progress.Event) error {
			event := ev
			s.hub.Broadcast(&Frame{Type: MessageTypeProgress, SessionID: sessionID, Event: &event})
			return nil
		},
	})
	if err != nil {
		s.hub.Broadcast(&Frame{Type: MessageTypeError, SessionID: sessionID, Error: err.Error()})
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.hub.Broadcast(&Frame{Type: MessageTypeReply, SessionID: sessionID, Reply: reply})
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	health := HealthResponse{
		Status:   "ok",
		Provider: s.cfg.Provider,
		Model:    s.cfg.Model,
		Clients:  s.hub.ClientCount(),
	}
	if sess := s.ctrl.Session(); sess != nil {
		health.SessionStarted = sess.CreatedAt()
		health.LastActivity = sess.UpdatedAt()
	}
	if s.snapshot != nil {
		if ds := s.snapshot(); ds != nil {
			health.Dataset = ds.Summary()
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(s.hub, conn)
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug("failed to write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
