package replay

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/edfreplay/internal/httputil"
)

// AttachAdminRoutes registers /debug/session, a JSON snapshot of Stats.
func (s *Session) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("session", "replay session progress", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Stats())
	})
}
