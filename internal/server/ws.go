package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tenderops/remixbridge/internal/hostbridge"
	"github.com/tenderops/remixbridge/internal/observability/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The IDE plugin connects from a browser origin; the bridge binds
	// to loopback, so origin checking adds nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and runs a host session on
// it. Only one host is active at a time; a new connection replaces the
// previous one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := hostbridge.NewSession(conn, s.onCompilation, s.logger)
	s.hub.Attach(sess)
	metrics.HostConnected()
	s.logger.Info("host connected", "remote", r.RemoteAddr)

	err = sess.Run(r.Context())

	s.hub.Detach(sess)
	metrics.HostDisconnected()
	conn.Close()
	s.logger.Info("host disconnected", "remote", r.RemoteAddr, "reason", err)
}

// onCompilation replaces the compiled-contract snapshot with the
// result the host just produced.
func (s *Server) onCompilation(ev hostbridge.CompilationEvent) {
	metrics.CompilationReceived()
	s.snapshot.Update(ev.Data)
	s.logger.Info("compilation received",
		"file", ev.FileName,
		"contracts", len(s.snapshot.Names()),
	)
}
