package radios

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Vasu1712/scenyx-radio/internal/radio"
	"github.com/gorilla/mux"
)

// ServeStream attaches the request as a listener of the station's audio and
// copies encoded chunks until the client goes away or the station is deleted.
func (h *RadioHandler) ServeStream(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	st := h.Registry.Get(name)
	if st == nil {
		http.Error(w, "Radio not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	consumer, err := st.Attach()
	if errors.Is(err, radio.ErrNotFound) {
		http.Error(w, "Radio not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, radio.ErrStopped) {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.updateListeners(st)
	defer func() {
		st.Detach(consumer)
		h.updateListeners(st)
		h.Log.Debug().Str("station", st.Name()).Str("remote", r.RemoteAddr).Msg("listener detached")
	}()
	h.Log.Debug().Str("station", st.Name()).Str("remote", r.RemoteAddr).Msg("listener attached")

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-consumer.C():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			if h.Metrics != nil {
				h.Metrics.BytesSent.WithLabelValues(st.Name()).Add(float64(len(chunk)))
			}
		}
	}
}

// updateListeners publishes the listener gauge, skipping stations that are
// no longer registered so their series stay deleted.
func (h *RadioHandler) updateListeners(st *radio.Station) {
	if h.Metrics == nil {
		return
	}
	name := st.Name()
	if h.Registry.Get(name) != st {
		return
	}
	h.Metrics.Listeners.WithLabelValues(name).Set(float64(st.ListenerCount()))
}

// ListRadios returns every station's snapshot.
func (h *RadioHandler) ListRadios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.States())
}

// Health reports liveness with a few counters.
func (h *RadioHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"stations":    h.Registry.Len(),
		"connections": h.Hub.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
