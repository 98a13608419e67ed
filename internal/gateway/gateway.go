// Package gateway manages realtime duplex connections with clients. It
// authenticates websocket upgrades, enforces a single connection per user,
// delivers generation events with acknowledgement tracking, and dispatches
// inbound requests to the orchestration layer.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cardforge/cardforge-api/internal/config"
	"github.com/cardforge/cardforge-api/internal/events"
	"github.com/cardforge/cardforge-api/internal/service/auth"
)

// RequestHandler receives inbound requests and connection lifecycle
// notifications from the gateway. The orchestrator implements this.
type RequestHandler interface {
	// HandleStartGeneration admits and launches a generation. A non-nil
	// error is relayed to the client as a rejected request ack.
	HandleStartGeneration(ctx context.Context, userID uuid.UUID, generationID string, req events.StartGenerationPayload) error

	// HandleDisconnect is invoked once when a user's connection is lost
	// (not when it is superseded by a newer connection).
	HandleDisconnect(userID uuid.UUID, reason string)
}

// Gateway upgrades HTTP requests to websocket connections and mediates all
// realtime traffic. Each user holds at most one connection; a newer
// connection supersedes and closes the previous one.
type Gateway struct {
	logger   *slog.Logger
	cfg      config.GatewayConfig
	verifier auth.Verifier
	upgrader websocket.Upgrader
	handler  RequestHandler

	mu    sync.RWMutex
	conns map[uuid.UUID]*userConn
}

// New creates a Gateway. The request handler is attached separately via
// SetHandler because the orchestrator and gateway reference each other.
func New(logger *slog.Logger, cfg config.GatewayConfig, verifier auth.Verifier) *Gateway {
	return &Gateway{
		logger:   logger.With(slog.String("component", "gateway")),
		cfg:      cfg,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[uuid.UUID]*userConn),
	}
}

// SetHandler attaches the inbound request handler. Must be called before the
// gateway starts accepting connections.
func (g *Gateway) SetHandler(h RequestHandler) {
	g.handler = h
}

// HandleWebSocket authenticates the request and upgrades it to a websocket
// connection. Credentials are taken from the Authorization header or, for
// browser clients that cannot set headers on upgrade requests, the token
// query parameter.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := g.verifier.Verify(r.Context(), extractCredential(r))
	if err != nil {
		g.logger.Info("rejected connection",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("reason", err.Error()))
		http.Error(w, authFailureMessage(err), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	c := newUserConn(identity.UserID, conn)
	g.register(c)

	g.logger.Info("connection established",
		slog.String("user_id", identity.UserID.String()),
		slog.String("remote_addr", r.RemoteAddr))

	go g.pingLoop(c)
	go g.readLoop(c)
}

// register installs the connection as the user's current one. Any previous
// connection for the same user is closed before the new one carries traffic.
func (g *Gateway) register(c *userConn) {
	g.mu.Lock()
	old := g.conns[c.userID]
	g.conns[c.userID] = c
	g.mu.Unlock()

	if old != nil {
		g.logger.Info("superseding previous connection",
			slog.String("user_id", c.userID.String()))
		old.close()
	}
}

// connFor returns the user's current connection, if any.
func (g *Gateway) connFor(userID uuid.UUID) *userConn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.conns[userID]
}

// Connected reports whether the user currently holds a realtime connection.
func (g *Gateway) Connected(userID uuid.UUID) bool {
	return g.connFor(userID) != nil
}

// Send delivers one event to the user's connection, blocking until the
// client acknowledges it or the configured window elapses. Events on a
// connection are assigned monotonically increasing IDs in write order.
func (g *Gateway) Send(ctx context.Context, userID uuid.UUID, event string, payload any) error {
	c := g.connFor(userID)
	if c == nil {
		return ErrNoConnection
	}

	c.writeMu.Lock()
	eventID := c.nextEventID()
	var ack chan struct{}
	if g.cfg.RequireAck {
		ack = c.registerAck(eventID)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	err := c.conn.WriteJSON(events.OutboundFrame{
		Type:    event,
		EventID: eventID,
		Payload: payload,
	})
	c.writeMu.Unlock()

	if err != nil {
		if ack != nil {
			c.dropAck(eventID)
		}
		return errors.Join(ErrConnectionClosed, err)
	}
	if ack == nil {
		return nil
	}

	timer := time.NewTimer(g.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case <-ack:
		return nil
	case <-timer.C:
		c.dropAck(eventID)
		return ErrDeliveryTimeout
	case <-c.closed:
		c.dropAck(eventID)
		return ErrConnectionClosed
	case <-ctx.Done():
		c.dropAck(eventID)
		return ctx.Err()
	}
}

// readLoop owns all reads on the connection: it resolves acknowledgement
// waiters and dispatches generation requests. When the loop exits the
// connection is torn down, and if it was still the user's current
// connection the disconnect handler fires.
func (g *Gateway) readLoop(c *userConn) {
	defer g.teardown(c)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var frame events.InboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.logger.Warn("read error",
					slog.String("user_id", c.userID.String()),
					slog.String("error", err.Error()))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		switch frame.Type {
		case events.MessageAck:
			c.resolveAck(frame.EventID)
		case events.MessageStartGeneration:
			g.dispatchStart(c, frame)
		default:
			g.logger.Debug("ignoring unknown message type",
				slog.String("type", frame.Type),
				slog.String("user_id", c.userID.String()))
		}
	}
}

// dispatchStart hands a startGeneration request to the handler on a
// separate goroutine so the read loop keeps draining acks while the
// generation streams, then reports the admission outcome back to the
// client.
func (g *Gateway) dispatchStart(c *userConn, frame events.InboundFrame) {
	var req events.StartGenerationPayload
	if frame.Start != nil {
		req = *frame.Start
	}
	go func() {
		err := g.handler.HandleStartGeneration(context.Background(), c.userID, frame.GenerationID, req)
		ackPayload := events.RequestAckPayload{
			GenerationID: frame.GenerationID,
			Accepted:     err == nil,
		}
		if err != nil {
			ackPayload.Error = err.Error()
		}
		writeErr := c.writeFrame(events.OutboundFrame{
			Type:    events.EventRequestAck,
			Payload: ackPayload,
		}, g.cfg.WriteTimeout)
		if writeErr != nil {
			g.logger.Debug("failed to deliver request ack",
				slog.String("user_id", c.userID.String()),
				slog.String("error", writeErr.Error()))
		}
	}()
}

// pingLoop keeps the connection alive; the pong handler extends the read
// deadline.
func (g *Gateway) pingLoop(c *userConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// teardown closes the connection and, if it was still the registered one,
// removes it and notifies the handler that the user dropped. A superseded
// connection skips the notification because the user remains connected
// through its replacement.
func (g *Gateway) teardown(c *userConn) {
	c.close()

	g.mu.Lock()
	current := g.conns[c.userID] == c
	if current {
		delete(g.conns, c.userID)
	}
	g.mu.Unlock()

	if !current {
		return
	}

	g.logger.Info("connection lost", slog.String("user_id", c.userID.String()))
	if g.handler != nil {
		g.handler.HandleDisconnect(c.userID, "connection lost")
	}
}

// Close tears down every active connection, used during server shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*userConn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[uuid.UUID]*userConn)
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// extractCredential pulls the bearer token from the Authorization header or
// the token query parameter.
func extractCredential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authFailureMessage maps verification errors to the client-facing refusal
// reason without leaking verifier internals.
func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing credentials"
	case errors.Is(err, auth.ErrExpiredToken):
		return "credentials expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "credentials not yet valid"
	default:
		return "invalid credentials"
	}
}
