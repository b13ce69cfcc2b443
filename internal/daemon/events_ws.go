package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dvr/internal/events"
	"dvr/internal/logging"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 50 * time.Second
	wsReadLimit    = 64 * 1024
	wsReplyTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// Client message types accepted on /api/events.
const (
	msgStreamURL     = "stream_url"
	msgPlayback      = "playback"
	msgPlaybackClear = "playback_clear"
)

// clientMessage is sent by UIs over the event socket. A stream_url message
// answers a resolve_url_now event.
type clientMessage struct {
	Type       string `json:"type"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
	URL        string `json:"url,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
}

// handleEvents upgrades to a websocket that streams lifecycle events and
// accepts fresh stream URLs and playback reports from the client.
func (s *apiServer) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.WarnWithContext(s.logger, "websocket upgrade failed", "api.ws_upgrade_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "client receives no live events"),
		)
		return
	}

	feed, unsubscribe := s.daemon.Subscribe()
	s.logger.Debug("event subscriber connected", logging.String("remote", c.Request.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeEvents(conn, feed)
	}()

	s.readClientMessages(conn)
	unsubscribe()
	<-writerDone
	_ = conn.Close()
	s.logger.Debug("event subscriber disconnected", logging.String("remote", c.Request.RemoteAddr))
}

func (s *apiServer) writeEvents(conn *websocket.Conn, feed <-chan events.Event) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-feed:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *apiServer) readClientMessages(conn *websocket.Conn) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		s.handleClientMessage(msg)
	}
}

func (s *apiServer) handleClientMessage(msg clientMessage) {
	switch msg.Type {
	case msgStreamURL:
		ctx, cancel := context.WithTimeout(context.Background(), wsReplyTimeout)
		defer cancel()
		woke, err := s.daemon.UpdateScheduleStreamURL(ctx, msg.ScheduleID, msg.URL)
		if err != nil {
			logging.WarnWithContext(s.logger, "stream url from client rejected", "api.ws_stream_url_rejected",
				logging.Int64(logging.FieldScheduleID, msg.ScheduleID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the recording falls back to its stored url"),
			)
			return
		}
		s.logger.Info("stream url received from client",
			logging.Int64(logging.FieldScheduleID, msg.ScheduleID),
			logging.Bool("delivered", woke),
		)
	case msgPlayback:
		s.daemon.SetPlayback(msg.SourceID, msg.ChannelID)
	case msgPlaybackClear:
		s.daemon.ClearPlayback()
	default:
		s.logger.Debug("ignoring client message", logging.String("type", msg.Type))
	}
}
