package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"github.com/skyfleet/missionctl/internal/commands"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/skyfleet/missionctl/pkg/streaming"
)

const (
	sendChSize     = 64
	snapshotBuffer = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// streamClient is one websocket connection with a single write goroutine.
type streamClient struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *Server) upgrader() ws.Upgrader {
	return ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range s.origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// stream upgrades to a websocket, sends every snapshot of the mission and
// accepts command envelopes from the client.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	mission, err := s.missions.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sub, err := mission.Subscribe(snapshotBuffer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer sub.Close()

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("websocket upgrade failed", "mission", id, "error", err)
		return
	}

	c := &streamClient{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: s.logger.With("mission", id, "remote", r.RemoteAddr),
	}
	s.metrics.StreamClients.Inc()
	defer s.metrics.StreamClients.Dec()
	c.logger.Debug("stream client connected")

	go c.writeLoop()
	go s.readLoop(c, id)

	for {
		select {
		case <-c.done:
			c.logger.Debug("stream client disconnected")
			return
		case snap, ok := <-sub.C:
			if !ok {
				// Mission disposed.
				c.close()
				return
			}
			s.sendEnvelope(c, streaming.TypeSnapshot, snap)
			s.metrics.SnapshotsStreamed.Inc()
		}
	}
}

// readLoop decodes command envelopes and dispatches them for the mission.
func (s *Server) readLoop(c *streamClient, missionID string) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		env, err := streaming.Decode(message)
		if err != nil || env.Type != streaming.TypeCommand {
			s.sendEnvelope(c, streaming.TypeError, streaming.ErrorPayload{Message: "expected a command envelope"})
			continue
		}

		var cmd streaming.CommandPayload
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			s.sendEnvelope(c, streaming.TypeError, streaming.ErrorPayload{Message: "invalid command payload"})
			continue
		}

		s.handleCommand(c, missionID, cmd)
	}
}

func (s *Server) handleCommand(c *streamClient, missionID string, cmd streaming.CommandPayload) {
	name, ok := commands.ForAction(cmd.Action)
	if !ok {
		s.sendEnvelope(c, streaming.TypeError, streaming.ErrorPayload{Action: cmd.Action, Message: "unknown action"})
		return
	}

	res, err := s.dispatcher.Dispatch(dispatcher.Event{
		Command: name,
		Args:    []string{missionID, cmd.Value},
		Source:  "websocket",
	})
	if err != nil {
		s.sendEnvelope(c, streaming.TypeError, streaming.ErrorPayload{Action: cmd.Action, Message: err.Error()})
		return
	}
	snap, _ := res.(core.Snapshot)
	s.sendEnvelope(c, streaming.TypeResult, streaming.ResultPayload{Action: cmd.Action, Snapshot: snap})
}

func (s *Server) sendEnvelope(c *streamClient, msgType string, payload any) {
	data, err := streaming.Encode(msgType, payload)
	if err != nil {
		c.logger.Error("failed to encode stream message", "type", msgType, "error", err)
		return
	}
	c.send(data)
}

// writeLoop drains sendCh to the connection and keeps it alive with pings.
// It is the only writer of conn.
func (c *streamClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *streamClient) send(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.logger.Warn("stream send channel full, dropping message")
	}
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.done) })
}
