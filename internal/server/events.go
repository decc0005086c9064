package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nainya/applydesk/internal/editor"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The daemon binds to loopback only
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is one frame on the events socket. The first frame carries only
// the state; later frames carry the event and the state after it.
type wsMessage struct {
	Event *editor.Event `json:"event,omitempty"`
	State *editor.State `json:"state,omitempty"`
}

// wsCommand is a frame sent by the client
type wsCommand struct {
	Combo string `json:"combo"`
}

// handleEvents streams session events over a websocket. Clients may send
// {"combo": "ctrl+z"} frames to drive undo and redo.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed").Err(err).Send()
		return
	}
	defer conn.Close()

	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go s.readCommands(conn, sess, done)

	st := sess.State()
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(wsMessage{State: &st}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			msg := wsMessage{Event: &ev}
			if ev.Type != editor.EventClosed {
				st := sess.State()
				msg.State = &st
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, sess *editor.Session, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("WebSocket closed").Err(err).Send()
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if cmd.Combo != "" {
			sess.HandleKey(s.manager.Keys(), cmd.Combo)
		}
	}
}
