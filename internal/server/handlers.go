package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ghostedit/ghostedit/internal/admission"
	"github.com/ghostedit/ghostedit/internal/session"
	"github.com/ghostedit/ghostedit/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The extension connects from arbitrary page origins; the server only
	// listens on loopback, which is the actual trust boundary.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleRoot answers the discovery handshake or upgrades to a session.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleSession(w, r)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Redirect{
		WebSocketPort:   s.config.Port,
		ProtocolVersion: protocol.ProtocolVersion,
	})
}

// handleHealth reports liveness and the current session count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.ActiveSessions(),
		"watch":    s.engineOpts.Watch,
	})
}

// handleSession upgrades the connection and runs a session engine on it.
// Admission happens after the upgrade so a busy server can tell the
// extension why it is being turned away.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	slot, err := s.ctrl.Acquire(r.Context())
	if err != nil {
		if errors.Is(err, admission.ErrBusy) {
			log.Info().Msg("rejecting session, server busy")
			msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "another edit session is active")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		} else {
			log.Warn().Err(err).Msg("admission failed")
		}
		_ = ws.Close()
		return
	}

	s.sessionStarted()
	go func() {
		defer s.sessionEnded()
		defer slot.Release()

		conn := session.NewWSConn(ws)
		eng := session.New(conn, s.engineOpts)
		log.Info().Str("session", eng.ID()).Str("remote", r.RemoteAddr).Msg("session accepted")
		eng.Run(s.baseCtx)
	}()
}
