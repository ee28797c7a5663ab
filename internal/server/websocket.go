package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/directory"
	"github.com/smukkama/matricare/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// handleSocket streams a patient's appointments and symptoms. Every frame
// holds the full current sequence of one sub-collection. The subscription
// lives exactly as long as the socket.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	if _, err := s.deps.Directory.Get(r.Context(), patientID); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		s.logger.Error("patient lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "directory unavailable")
		return
	}

	if s.ctx.Err() != nil {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer ws.Close()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	send := make(chan []byte, sendBuffer)
	enqueue := func(msg interface{}) {
		data, err := protocol.EncodeMessage(msg)
		if err != nil {
			s.logger.Error("failed to encode frame", zap.Error(err))
			return
		}
		select {
		case send <- data:
		case <-ctx.Done():
		}
	}

	enqueue(protocol.NewAckMessage(protocol.AckStatusSubscribed))

	unsubscribe := s.deps.Directory.Subscribe(ctx, patientID, func(u directory.Update) {
		enqueue(protocol.NewUpdateMessage(patientID, string(u.Type), u.Data))
	})
	defer unsubscribe()

	go s.readPump(ctx, cancel, ws, enqueue)
	s.writePump(ctx, ws, send)
}

// readPump answers client frames and cancels ctx when the peer goes away.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, enqueue func(interface{})) {
	defer cancel()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			enqueue(protocol.NewErrorMessage(err.Error()))
			continue
		}

		switch msg.(type) {
		case *protocol.KeepaliveMessage:
			enqueue(protocol.NewAckMessage(protocol.AckStatusAlive))
		}
	}
}

func (s *Server) writePump(ctx context.Context, ws *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case data := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
