// Package uiserver exposes the control plane: procedures over WebSocket
// (subprotocols ui0.0.1/ui0.0.2) and HTTP, plus metrics and the station
// event stream.
package uiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/registry"
)

// Endpoint is the control-plane capability surface.
type Endpoint interface {
	Start() error
	Stop(ctx context.Context) error
	// SendRequest dispatches one procedure as if it arrived over the wire.
	SendRequest(ctx context.Context, procedure string, payload json.RawMessage) (any, error)
	// SendResponse delivers a response frame to one connected client.
	SendResponse(clientID string, frame []byte) error
	// Broadcast pushes an event frame to every connected client.
	Broadcast(event string, payload any)
}

// Config holds the listen address of the control plane.
type Config struct {
	Addr string
	// EnableMetrics exposes /metrics on the same listener.
	EnableMetrics bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server implements Endpoint on a fiber app.
type Server struct {
	cfg      Config
	log      *zap.Logger
	registry *registry.Registry
	app      *fiber.App

	mu      sync.Mutex
	clients map[string]*client
	stopped chan struct{}
}

var _ Endpoint = (*Server)(nil)

// New assembles the control plane around a registry.
func New(cfg Config, reg *registry.Registry, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.With(zap.String("component", "uiserver")),
		registry: reg,
		clients:  make(map[string]*client),
		stopped:  make(chan struct{}),
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code == fiber.StatusInternalServerError {
				s.log.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.cfg.EnableMetrics {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	s.app.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(s.registry.List())
	})
	s.app.Post("/procedures/:name", s.handleHTTPProcedure)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		proto := c.Get("Sec-WebSocket-Protocol")
		if !acceptableProtocol(proto) {
			s.log.Warn("unsupported ui subprotocol", zap.String("protocol", proto))
			return fiber.ErrBadRequest
		}
		return c.Next()
	})
	s.app.Get("/ws", websocket.New(s.handleWS, websocket.Config{
		Subprotocols: []string{ProtocolV1, ProtocolV2},
	}))
}

func acceptableProtocol(header string) bool {
	for _, p := range strings.Split(header, ",") {
		switch strings.TrimSpace(p) {
		case ProtocolV1, ProtocolV2:
			return true
		}
	}
	return false
}

// Start listens in a background goroutine until Stop.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.Addr)
	}()
	// Give the listener a beat to fail fast on a bad address.
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
	}
	go s.pumpEvents()
	s.log.Info("control plane listening", zap.String("addr", s.cfg.Addr))
	return nil
}

// Stop closes client connections and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopped)
	s.mu.Lock()
	for _, cl := range s.clients {
		close(cl.send)
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()
	return s.app.ShutdownWithContext(ctx)
}

// pumpEvents forwards registry events to every websocket client.
func (s *Server) pumpEvents() {
	sub := s.registry.Subscribe()
	defer s.registry.Unsubscribe(sub)
	for {
		select {
		case <-s.stopped:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.Broadcast(ev.Kind, fiber.Map{
				"hashId":      ev.HashID,
				"stationName": ev.Name,
				"payload":     ev.Payload,
			})
		}
	}
}

// Broadcast pushes an event frame to every connected client.
func (s *Server) Broadcast(event string, payload any) {
	frame, err := marshalBroadcastFrame(uuid.NewString(), event, payload)
	if err != nil {
		s.log.Error("broadcast marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cl := range s.clients {
		select {
		case cl.send <- frame:
		default: // slow client, drop it
			close(cl.send)
			delete(s.clients, id)
		}
	}
}

// SendResponse delivers a raw frame to one client.
func (s *Server) SendResponse(clientID string, frame []byte) error {
	s.mu.Lock()
	cl, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("uiserver: no client %s", clientID)
	}
	select {
	case cl.send <- frame:
		return nil
	default:
		return fmt.Errorf("uiserver: client %s backlogged", clientID)
	}
}

func (s *Server) handleWS(conn *websocket.Conn) {
	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 64)}
	s.mu.Lock()
	s.clients[cl.id] = cl
	s.mu.Unlock()
	s.log.Debug("ui client connected",
		zap.String("clientId", cl.id), zap.String("protocol", conn.Subprotocol()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range cl.send {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		req, err := parseRequestFrame(data)
		if err != nil {
			s.log.Warn("malformed ui frame", zap.Error(err))
			continue
		}
		result, err := s.SendRequest(context.Background(), req.Procedure, req.Payload)
		if err != nil {
			result = fiber.Map{"status": registry.StatusFailure, "error": err.Error()}
		}
		frame, err := marshalResponseFrame(req.ID, result)
		if err != nil {
			s.log.Error("response marshal failed", zap.Error(err))
			continue
		}
		select {
		case cl.send <- frame:
		case <-done:
		}
	}

	s.mu.Lock()
	if _, ok := s.clients[cl.id]; ok {
		delete(s.clients, cl.id)
		close(cl.send)
	}
	s.mu.Unlock()
	<-done
	s.log.Debug("ui client disconnected", zap.String("clientId", cl.id))
}

func (s *Server) handleHTTPProcedure(c *fiber.Ctx) error {
	payload := c.Body()
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	result, err := s.SendRequest(c.Context(), c.Params("name"), payload)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(result)
}

// SendRequest dispatches one procedure against the registry.
func (s *Server) SendRequest(ctx context.Context, procedure string, payload json.RawMessage) (any, error) {
	var req requestPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("uiserver: bad payload: %w", err)
		}
	}

	switch procedure {
	case ProcStartChargingStation:
		return s.registry.StartStations(ctx, req.HashIds), nil
	case ProcStopChargingStation:
		return s.registry.StopStations(ctx, req.HashIds), nil
	case ProcOpenConnection:
		return s.registry.OpenConnections(ctx, req.HashIds), nil
	case ProcCloseConnection:
		return s.registry.CloseConnections(ctx, req.HashIds), nil
	case ProcStartTransaction:
		if req.ConnectorId <= 0 {
			return nil, fmt.Errorf("uiserver: startTransaction needs connectorId")
		}
		return s.registry.StartTransaction(ctx, req.HashIds, req.ConnectorId, req.IdTag), nil
	case ProcStopTransaction:
		if req.TransactionId == "" {
			return nil, fmt.Errorf("uiserver: stopTransaction needs transactionId")
		}
		return s.registry.StopTransaction(ctx, req.HashIds, req.TransactionId), nil
	case ProcStartATG:
		return s.registry.StartGenerators(req.HashIds, req.ConnectorIds...), nil
	case ProcStopATG:
		return s.registry.StopGenerators(ctx, req.HashIds), nil
	case ProcStatusNotification:
		return s.registry.StatusNotification(ctx, req.HashIds), nil
	case ProcListStations:
		return s.registry.List(), nil
	default:
		return nil, fmt.Errorf("uiserver: unknown procedure %q", procedure)
	}
}
