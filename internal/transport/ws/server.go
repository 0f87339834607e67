package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fivebear-admin-go/internal/domain/auth"
	"fivebear-admin-go/internal/domain/events"
	"fivebear-admin-go/internal/utils"
)

const defaultCloseTimeout = 5 * time.Second

// ServerConfig stores the settings required to expose the websocket transport.
type ServerConfig struct {
	Addr             string
	Path             string
	HandshakeTimeout time.Duration
}

// Server upgrades authenticated clients and pumps their frames. The token
// handshake runs before the hub registration, so only verified identities
// ever hold a push channel.
type Server struct {
	cfg      ServerConfig
	hub      *Hub
	authSvc  *auth.Service
	bus      *events.Bus
	logger   *utils.Logger
	upgrader *websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer builds a websocket transport server.
func NewServer(cfg ServerConfig, hub *Hub, authSvc *auth.Service, bus *events.Bus, logger *utils.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	return &Server{
		cfg:     cfg,
		hub:     hub,
		authSvc: authSvc,
		bus:     bus,
		logger:  logger,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// Start boots the HTTP server and listens for websocket upgrades.
func (s *Server) Start(ctx context.Context) error {
	if s.httpSrv != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handle)

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: mux,
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
			defer cancel()
			_ = s.httpSrv.Shutdown(shutdownCtx)
		}()
	}

	s.logger.InfoTag("WS", "listening on %s%s", s.cfg.Addr, s.cfg.Path)

	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the websocket server and active connections.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		return err
	}

	s.hub.CloseAll()
	s.httpSrv = nil
	return nil
}

func (s *Server) handle(w http.ResponseWriter, req *http.Request) {
	token := extractToken(req)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := s.authSvc.ValidateToken(req.Context(), token)
	if err != nil {
		s.logger.WarnTag("WS", "handshake rejected: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	socket, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.ErrorTag("WS", "upgrade failed for %s: %v", identity.AccountName, err)
		return
	}

	conn := NewConnection(uuid.NewString(), identity.AccountName, identity.Role, socket)
	prev := s.hub.Register(conn)
	if prev != nil {
		s.logger.InfoTag("WS", "replacing notification channel %s for %s", prev.ID(), conn.Username())
		_ = prev.Close()
	}

	s.logger.InfoTag("WS", "connection %s opened for %s", conn.ID(), conn.Username())
	_ = conn.SendEnvelope(events.NewEnvelope(events.TypeConnected, "connection established", map[string]any{
		"connection_id": conn.ID(),
		"username":      conn.Username(),
	}))

	s.bus.Publish(events.TopicWSConnected, events.ConnectionEventData{
		ConnectionID: conn.ID(),
		Username:     conn.Username(),
		Role:         conn.Role(),
	})

	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		_ = conn.Close()
		s.bus.Publish(events.TopicWSClosed, events.ConnectionEventData{
			ConnectionID: conn.ID(),
			Username:     conn.Username(),
		})
		s.logger.InfoTag("WS", "connection %s closed for %s", conn.ID(), conn.Username())
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.dispatch(conn, payload)
	}
}

// dispatch answers client frames; only PING is expected today.
func (s *Server) dispatch(conn *Connection, payload []byte) {
	var env events.Envelope
	if err := sonic.Unmarshal(payload, &env); err != nil {
		s.logger.DebugTag("WS", "ignoring unparseable frame from %s: %v", conn.Username(), err)
		return
	}

	switch env.Type {
	case events.TypePing:
		_ = conn.SendEnvelope(events.NewEnvelope(events.TypePong, "pong", nil))
	default:
		s.logger.DebugTag("WS", "ignoring %s frame from %s", env.Type, conn.Username())
	}
}

// extractToken pulls the bearer token from the query string or the
// Authorization header, in that order.
func extractToken(req *http.Request) string {
	if token := req.URL.Query().Get("token"); token != "" {
		return token
	}
	header := req.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
