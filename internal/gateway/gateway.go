package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bracketworks/livecast/internal/admission"
	"github.com/bracketworks/livecast/internal/auth"
	"github.com/bracketworks/livecast/internal/directory"
	"github.com/bracketworks/livecast/internal/protocol"
	"github.com/bracketworks/livecast/internal/room"
)

// rateStrikeLimit is how many consecutive rate-limit denials a
// connection survives before it is closed instead of warned.
const rateStrikeLimit = 10

// Publisher republishes organizer-initiated events into the broadcast
// pipeline. Satisfied by *broadcast.Coordinator.
type Publisher interface {
	Publish(ctx context.Context, kind directory.Kind, id, event string, payload []byte)
}

// Config configures the gateway.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	ReadLimit      int64 // hard cap on inbound frame size
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval: 15 * time.Second,
		PongTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   256,
		ReadLimit:    64 * 1024,
	}
}

// Gateway owns the connection lifecycle for all clients.
type Gateway struct {
	cfg       Config
	verifier  *auth.Verifier
	dir       directory.Directory
	gate      *admission.Gate
	rooms     *room.Registry
	publisher Publisher
	logger    *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn

	accepted atomic.Int64
	rejected atomic.Int64
}

// Stats reports gateway counters.
type Stats struct {
	Connections int
	Accepted    int64
	Rejected    int64
}

// New creates a connection gateway.
func New(
	cfg Config,
	verifier *auth.Verifier,
	dir directory.Directory,
	gate *admission.Gate,
	rooms *room.Registry,
	publisher Publisher,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		cfg:       cfg,
		verifier:  verifier,
		dir:       dir,
		gate:      gate,
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
		conns:     make(map[string]*conn),
	}

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}

	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range g.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// ServeHTTP accepts a connection for /ws/{kind}/{id}. Rejections after
// the upgrade close the socket with a reason-specific close code so
// clients can tell "try again later" from "do not retry".
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind, id, err := parsePath(r.URL.Path)
	if err != nil {
		http.Error(w, "unknown path", http.StatusNotFound)
		return
	}

	token := bearerToken(r)

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("upgrade failed", "error", err)
		return
	}

	ctx := r.Context()

	identity, err := g.verifier.Verify(token)
	if err != nil {
		g.reject(ws, protocol.CloseUnauthenticated, "authentication required")
		return
	}

	entity, err := g.dir.Resolve(ctx, kind, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			g.reject(ws, protocol.CloseNotFound, fmt.Sprintf("%s %s not found", kind, id))
		} else {
			g.logger.Error("entity resolve failed", "kind", kind, "id", id, "error", err)
			g.reject(ws, websocket.CloseInternalServerErr, "entity lookup failed")
		}
		return
	}

	if d := g.gate.Connect(ctx, identity.Subject); !d.Allowed {
		g.reject(ws, closeCodeFor(d.Code), string(d.Code))
		return
	}

	role := entity.RoleFor(identity.Subject)

	c := &conn{
		id:         uuid.NewString(),
		identity:   identity,
		role:       role,
		entityKind: kind,
		entityID:   id,
		ws:         ws,
		send:       make(chan []byte, g.cfg.SendBuffer),
		done:       make(chan struct{}),
		gw:         g,
	}
	c.logger = g.logger.With("conn_id", c.id, "subject", identity.Subject)

	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()

	for _, roomID := range entity.Rooms() {
		g.rooms.Join(roomID, c)
	}

	go c.writePump()
	go c.readPump()

	c.sendEnvelope(protocol.TypeConnectionEstablished, establishedData{
		Role:   role,
		Entity: entity.Snapshot(),
	})

	g.accepted.Add(1)
	g.logger.Info("connection established",
		"conn_id", c.id,
		"subject", identity.Subject,
		"role", role,
		"entity", directory.RoomID(kind, id),
	)
}

// establishedData is the connection_established payload.
type establishedData struct {
	Role   directory.Role     `json:"role"`
	Entity directory.Snapshot `json:"entity"`
}

// reject closes a just-upgraded socket with a rejection close code.
func (g *Gateway) reject(ws *websocket.Conn, code int, reason string) {
	g.rejected.Add(1)

	deadline := time.Now().Add(time.Second)
	ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		deadline,
	)
	ws.Close()

	g.logger.Info("connection rejected", "code", code, "reason", reason)
}

// disconnect is the single teardown path, run when a connection's read
// loop exits. Safe against partially constructed or already-closed
// connections.
func (g *Gateway) disconnect(c *conn) {
	c.close(websocket.CloseNormalClosure, "")
	g.rooms.LeaveAll(c)
	g.gate.Release(context.Background(), c.identity.Subject)
}

// forget drops the connection from the gateway's index.
func (g *Gateway) forget(c *conn) {
	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()
}

// handleMessage applies per-message admission and dispatches on the
// required type field. Message-level failures are reported inline and
// never close the connection, with two exceptions: persistent rate
// abuse and frames over the hard read limit.
func (g *Gateway) handleMessage(c *conn, data []byte) {
	ctx := context.Background()

	if d := g.gate.Payload(len(data)); !d.Allowed {
		c.sendError(protocol.CodePayloadTooLarge, "payload exceeds configured maximum")
		return
	}

	if d := g.gate.Message(ctx, c.identity.Subject); !d.Allowed {
		c.rateStrikes++
		if c.rateStrikes >= rateStrikeLimit {
			c.close(protocol.CloseRateLimit, "rate limit exceeded")
			return
		}
		c.sendError(protocol.CodeRateLimitExceeded, "message rate exceeded")
		return
	}
	c.rateStrikes = 0

	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.sendError(protocol.CodeInvalidSchema, "message requires a type field")
		return
	}

	switch msg.Type {
	case protocol.TypePing:
		c.sendEnvelope(protocol.TypePong, nil)

	case protocol.TypePong:
		// Client answered an application-level ping. Liveness is
		// tracked on control frames; nothing to do here.

	case protocol.TypeSubscribe:
		g.handleSubscribe(ctx, c, msg.Data)

	case protocol.TypeUnsubscribe:
		g.handleUnsubscribe(c, msg.Data)

	case protocol.TypeMatchStateChanged:
		g.handleStateChange(ctx, c, msg.Data)

	default:
		c.sendError(protocol.CodeUnsupportedType, fmt.Sprintf("unsupported message type %q", msg.Type))
	}
}

// subscribeRequest is the subscribe/unsubscribe payload.
type subscribeRequest struct {
	Kind directory.Kind `json:"kind"`
	ID   string         `json:"id"`
}

func parseSubscribe(data []byte) (subscribeRequest, error) {
	var req subscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	if req.Kind != directory.KindTournament && req.Kind != directory.KindMatch {
		return req, fmt.Errorf("unknown entity kind %q", req.Kind)
	}
	if req.ID == "" {
		return req, errors.New("entity id is required")
	}
	return req, nil
}

func (g *Gateway) handleSubscribe(ctx context.Context, c *conn, data []byte) {
	req, err := parseSubscribe(data)
	if err != nil {
		c.sendError(protocol.CodeInvalidSchema, err.Error())
		return
	}

	if _, err := g.dir.Resolve(ctx, req.Kind, req.ID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.sendError(protocol.CodeNotFound, fmt.Sprintf("%s %s not found", req.Kind, req.ID))
		} else {
			g.logger.Error("subscribe resolve failed", "kind", req.Kind, "id", req.ID, "error", err)
			c.sendError(protocol.CodeNotFound, "entity lookup failed")
		}
		return
	}

	roomID := directory.RoomID(req.Kind, req.ID)
	g.rooms.Join(roomID, c)
	c.sendEnvelope(protocol.TypeSubscribed, map[string]string{"room": roomID})
}

func (g *Gateway) handleUnsubscribe(c *conn, data []byte) {
	req, err := parseSubscribe(data)
	if err != nil {
		c.sendError(protocol.CodeInvalidSchema, err.Error())
		return
	}
	g.rooms.Leave(directory.RoomID(req.Kind, req.ID), c)
}

// handleStateChange lets an organizer push a state change for the
// connection's entity through the broadcast pipeline.
func (g *Gateway) handleStateChange(ctx context.Context, c *conn, data []byte) {
	if c.role != directory.RoleOrganizer {
		c.sendError(protocol.CodeForbidden, "organizer role required")
		return
	}
	if len(data) == 0 {
		c.sendError(protocol.CodeInvalidSchema, "state change requires a payload")
		return
	}

	// The cached entity snapshot is stale once its state changes.
	g.dir.Invalidate(c.entityKind, c.entityID)
	g.publisher.Publish(ctx, c.entityKind, c.entityID, protocol.TypeMatchStateChanged, data)
}

// Shutdown closes every connection with a going-away code.
func (g *Gateway) Shutdown(ctx context.Context) {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	g.logger.Info("draining connections", "count", len(conns))
	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "server shutting down")
	}
}

// Stats returns current gateway counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	open := len(g.conns)
	g.mu.Unlock()

	return Stats{
		Connections: open,
		Accepted:    g.accepted.Load(),
		Rejected:    g.rejected.Load(),
	}
}

// closeCodeFor maps an admission denial to its close code.
func closeCodeFor(code admission.Code) int {
	switch code {
	case admission.CodeConnectionLimit:
		return protocol.CloseConnectionLimit
	case admission.CodeRateLimit:
		return protocol.CloseRateLimit
	case admission.CodePayloadTooLarge:
		return protocol.ClosePayloadTooLarge
	default:
		return websocket.ClosePolicyViolation
	}
}

// parsePath extracts the entity reference from /ws/{kind}/{id}.
func parsePath(path string) (directory.Kind, string, error) {
	trimmed := strings.TrimPrefix(path, "/ws/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", errors.New("expected /ws/{kind}/{id}")
	}

	kind := directory.Kind(parts[0])
	if kind != directory.KindTournament && kind != directory.KindMatch {
		return "", "", fmt.Errorf("unknown entity kind %q", parts[0])
	}
	return kind, parts[1], nil
}

// bearerToken extracts the credential from the Authorization header or
// the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("token")
}
