// Package web serves the browser chat UI, the JSON turn API, the map views
// and the chat websocket.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codefionn/geocopilot/internal/config"
	"github.com/codefionn/geocopilot/internal/consts"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/observability"
	"github.com/codefionn/geocopilot/internal/orchestrator"
)

//go:embed static/*
var StaticFiles embed.FS

// maxTurnBody bounds POST /api/turn request bodies.
const maxTurnBody = 64 * 1024

// Server represents the web server
type Server struct {
	addr         string
	orchestrator *orchestrator.Orchestrator
	broker       *MessageBroker
	hub          *Hub
	router       *httprouter.Router
	httpServer   *http.Server
	listener     net.Listener
	log          *logger.Logger
}

// NewServer creates a new web server
func NewServer(orch *orchestrator.Orchestrator, cfg config.ServerConfig) *Server {
	s := &Server{
		addr:         cfg.Addr,
		orchestrator: orch,
		broker:       NewMessageBroker(orch, time.Duration(cfg.TurnTimeoutSeconds)*time.Second),
		hub:          NewHub(),
		router:       httprouter.New(),
		log:          logger.Global().WithPrefix("web"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	static, _ := fs.Sub(StaticFiles, "static")
	s.router.ServeFiles("/static/*filepath", http.FS(static))

	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.POST("/api/turn", s.handleTurn)
	s.router.GET("/api/session", s.handleSession)
	s.router.POST("/api/reset", s.handleReset)

	s.router.GET("/map", s.handleMap)
	s.router.GET("/map.geojson", s.handleGeoJSON)

	s.router.GET("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler with metrics middleware applied.
func (s *Server) Handler() http.Handler {
	return observability.MetricsMiddleware(s.router)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: consts.Timeout5Seconds,
		ErrorLog:          logger.StdLogger(s.log, logger.LevelWarn),
	}

	go s.hub.Run()

	go func() {
		s.log.Info("Web server listening on %s", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the web server
func (s *Server) Stop() error {
	s.log.Info("Stopping web server...")
	s.hub.Stop()

	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	return "http://" + s.addr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	page, err := StaticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	report := s.orchestrator.HealthCheck(r.Context())
	status := http.StatusOK
	if report.Status == orchestrator.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.broker.ProcessUserMessage(r.Context(), req.Utterance, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.hub.Broadcast(&WebMessage{
		Type:      MessageTypeSession,
		Session:   s.broker.SessionView(),
		Timestamp: time.Now(),
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.broker.SessionView())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.broker.Reset()
	view := s.broker.SessionView()
	s.hub.Broadcast(&WebMessage{Type: MessageTypeSession, Session: view, Timestamp: time.Now()})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) latestMap(w http.ResponseWriter) (*geomap.MapArtifact, bool) {
	snap, ok := s.orchestrator.Session().Latest()
	if !ok || snap.Map == nil {
		writeError(w, http.StatusNotFound, "no map yet")
		return nil, false
	}
	return snap.Map, true
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	m, ok := s.latestMap(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := geomap.RenderHTML(w, m); err != nil {
		s.log.Error("Failed to render map: %v", err)
	}
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	m, ok := s.latestMap(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, geomap.Features(m))
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.broker)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	client.sendResponse(&WebMessage{
		Type:      MessageTypeSession,
		Session:   s.broker.SessionView(),
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
