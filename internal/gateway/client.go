package gateway

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one websocket connection. jobs is guarded by Hub.mu.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
	jobs   map[uuid.UUID]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, userID uuid.UUID) *client {
	return &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.opts.SendBuffer),
		jobs:   make(map[uuid.UUID]struct{}),
	}
}

// readPump handles client frames until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	pongWait := c.hub.opts.PongWait
	c.conn.SetReadLimit(c.hub.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		c.handle(data)
	}
}

func (c *client) handle(data []byte) {
	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.hub.reply(c, OutboundFrame{Event: EventError, Error: "invalid message"})
		return
	}
	if in.Action != ActionSubscribe && in.Action != ActionUnsubscribe {
		c.hub.reply(c, OutboundFrame{Event: EventError, Error: "unknown action"})
		return
	}
	if in.JobID == "" {
		return
	}
	jobID, err := uuid.Parse(in.JobID)
	if err != nil {
		c.hub.reply(c, OutboundFrame{Event: EventError, JobID: in.JobID, Error: "invalid jobId"})
		return
	}

	if in.Action == ActionSubscribe {
		c.hub.join(c, jobID)
		c.hub.reply(c, OutboundFrame{Event: EventSubscribed, JobID: jobID.String()})
		return
	}
	c.hub.leave(c, jobID)
	c.hub.reply(c, OutboundFrame{Event: EventUnsubscribed, JobID: jobID.String()})
}

// writePump drains send and keeps the connection alive with pings. It is
// the only writer on conn.
func (c *client) writePump() {
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
