package gateway

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bracketworks/livecast/internal/auth"
	"github.com/bracketworks/livecast/internal/directory"
	"github.com/bracketworks/livecast/internal/protocol"
)

// Errors
var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection closed")
)

// conn is one client connection. Owned exclusively by the gateway;
// other components see it only through the room.Member interface.
type conn struct {
	id       string
	identity auth.Identity
	role     directory.Role

	// Entity this connection was admitted for.
	entityKind directory.Kind
	entityID   string

	ws     *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	gw *Gateway

	closeOnce sync.Once
	done      chan struct{}

	// Consecutive rate-limit strikes; reset on any accepted message.
	rateStrikes int
}

// ID implements room.Member.
func (c *conn) ID() string { return c.id }

// Send implements room.Member. It never blocks: a full send queue is
// reported as a delivery failure instead of stalling the broadcaster.
func (c *conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// sendEnvelope marshals and queues a message, logging encode failures.
func (c *conn) sendEnvelope(msgType string, data any) {
	payload, err := protocol.Encode(msgType, data, 0)
	if err != nil {
		c.logger.Error("encode envelope", "type", msgType, "error", err)
		return
	}
	if err := c.Send(payload); err != nil {
		c.logger.Warn("queue envelope", "type", msgType, "error", err)
	}
}

func (c *conn) sendError(code, message string) {
	payload, err := protocol.EncodeError(code, message)
	if err != nil {
		c.logger.Error("encode error frame", "code", code, "error", err)
		return
	}
	if err := c.Send(payload); err != nil {
		c.logger.Warn("queue error frame", "code", code, "error", err)
	}
}

// close tears the connection down exactly once. Safe to call from any
// goroutine, including racing with an in-flight heartbeat probe.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)

		deadline := time.Now().Add(time.Second)
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			deadline,
		)
		c.ws.Close()

		c.gw.forget(c)

		c.logger.Debug("connection closed", "code", code, "reason", reason)
	})
}

// writePump drains the send queue and runs the heartbeat probe. The
// ticker doubles as the liveness schedule: every interval a ping
// control frame goes out, and the read side enforces the pong
// deadline.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.gw.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(c.gw.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", "error", err)
				c.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

// readPump reads inbound messages until the connection dies. A read
// deadline extended on every pong implements the heartbeat timeout: a
// client that stops answering probes times the read out and is closed
// with the stale close code.
func (c *conn) readPump() {
	defer c.gw.disconnect(c)

	c.ws.SetReadLimit(c.gw.cfg.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				c.close(protocol.CloseHeartbeatTimeout, "heartbeat timeout")
			case errors.Is(err, websocket.ErrReadLimit):
				c.close(protocol.ClosePayloadTooLarge, "payload too large")
			default:
				c.close(websocket.CloseNormalClosure, "")
			}
			return
		}

		c.gw.handleMessage(c, data)
	}
}
