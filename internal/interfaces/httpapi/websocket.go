package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"avaxdash/internal/application"
	"avaxdash/internal/streaming"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsQueueSize  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStream gives every websocket connection its own set of
// subscriptions; they are stopped when the socket closes or the server
// shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	names, err := parseQueryNames(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	s.metrics.wsConnected()
	defer s.metrics.wsDisconnected()

	ctx, cancel := context.WithCancel(s.streams)
	defer cancel()

	outbound := make(chan streaming.Message, wsQueueSize)
	emit := func(msg streaming.Message) {
		select {
		case outbound <- msg:
		default:
			slog.Warn("websocket client too slow, dropping snapshot", "remote", r.RemoteAddr, "type", msg.Type)
		}
	}

	group, err := application.StartStream(ctx, s.queries, names, s.metrics, emit)
	if err != nil {
		slog.Error("websocket subscribe failed", "err", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer group.Stop()

	slog.Info("websocket client connected", "remote", r.RemoteAddr, "queries", names)
	go readPump(conn, cancel)
	writePump(ctx, conn, outbound)
	slog.Info("websocket client disconnected", "remote", r.RemoteAddr)
}

// readPump discards client frames and cancels the view when the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, outbound <-chan streaming.Message) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case msg := <-outbound:
			payload, err := streaming.Encode(msg)
			if err != nil {
				slog.Error("websocket encode failed", "type", msg.Type, "err", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
