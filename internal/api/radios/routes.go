package radios

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRadioRoutes registers the control-plane, stream and REST routes.
func RegisterRadioRoutes(r *mux.Router, handler *RadioHandler) {
	r.HandleFunc("/ws", handler.ServeWS)
	r.HandleFunc("/stream/{name}", handler.ServeStream).Methods(http.MethodGet)
	r.HandleFunc("/api/radios", handler.ListRadios).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		handler.Log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("method not allowed")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}
