package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"digitalis/internal/hub"
	"digitalis/internal/models"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 10 * time.Second
)

// inboundMessage is what clients send over the sync connection. ID is an
// opaque client-chosen number echoed back on rejection frames so the client
// can match the refusal to the command that caused it.
type inboundMessage struct {
	Type string `json:"type"` // command | ack | subscribe

	ID         uint64          `json:"id,omitempty"`
	Command    *models.Command `json:"command,omitempty"`
	Version    uint64          `json:"version,omitempty"`
	Subscribed *bool           `json:"subscribed,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if s.corsOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == s.corsOrigin || r.Header.Get("Origin") == ""
		},
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil || s.sequencer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync not configured")
		return
	}

	var lastVersion uint64
	if v := r.URL.Query().Get("last_version"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last_version")
			return
		}
		lastVersion = parsed
	}
	subscribed := r.URL.Query().Get("subscribe") != "false"

	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}

	client := s.hub.Register(lastVersion, subscribed)
	log.Printf("ws client %s connected (last_version %d)", client.ID, lastVersion)

	go s.writePump(conn, client)
	s.readPump(r.Context(), conn, client)
}

// writePump owns all writes on the connection: hub frames in order, plus
// keepalive pings. Exits when the hub closes the client's frame channel.
func (s *Server) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Frames():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(wsWriteTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(
				websocket.PingMessage, nil,
				time.Now().Add(wsWriteTimeout),
			); err != nil {
				return
			}
		}
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer s.hub.Unregister(client.ID)

	conn.SetReadLimit(maxBodySize)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws client %s: %v", client.ID, err)
			}
			return
		}

		switch msg.Type {
		case "command":
			if msg.Command == nil {
				s.hub.Reject(client.ID, msg.ID, "command message without a command")
				continue
			}
			cmd := *msg.Command
			cmd.ClientID = client.ID
			if _, err := s.sequencer.Submit(ctx, cmd); err != nil {
				s.hub.Reject(client.ID, msg.ID, rejectionReason(err))
			}
		case "ack":
			s.hub.Ack(client.ID, msg.Version)
		case "subscribe":
			if msg.Subscribed != nil {
				s.hub.SetSubscribed(client.ID, *msg.Subscribed)
			}
		default:
			s.hub.Reject(client.ID, msg.ID, "unknown message type "+msg.Type)
		}
	}
}

func rejectionReason(err error) string {
	if reason, ok := models.IsRejected(err); ok {
		return reason
	}
	return err.Error()
}
