package radios

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/metrics"
	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/radio"
	"github.com/Vasu1712/scenyx-radio/internal/resolver"
	"github.com/Vasu1712/scenyx-radio/internal/ws"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// RadioHandler serves the control-plane websocket, the audio streams and the
// REST roster.
type RadioHandler struct {
	Registry       *radio.Registry
	Hub            *ws.Hub
	Resolver       resolver.Resolver
	Metrics        *metrics.Metrics
	Log            zerolog.Logger
	AllowedOrigin  string        // "*" or empty accepts any origin
	ResolveTimeout time.Duration // per add_song
}

func (h *RadioHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return h.AllowedOrigin == "" || h.AllowedOrigin == "*" || origin == "" || origin == h.AllowedOrigin
		},
	}
}

// ServeWS upgrades the connection and runs its read and write pumps.
func (h *RadioHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn)
	h.Hub.Register(client)
	h.Log.Debug().Str("client", client.ID).Str("remote", r.RemoteAddr).Msg("websocket connected")

	go h.writePump(client)
	go h.readPump(client)
}

func (h *RadioHandler) readPump(client *ws.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	conn := client.Conn
	var joined string

	defer func() {
		cancel()
		room := h.Hub.Unregister(client)
		if room == "" {
			room = joined
		}
		if st := h.Registry.Get(room); room != "" && st != nil {
			st.Release()
		}
		conn.Close()
		h.Log.Debug().Str("client", client.ID).Msg("websocket closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Warn().Err(err).Str("client", client.ID).Msg("websocket read error")
			}
			return
		}

		cmd, err := ws.DecodeCommand(msg)
		if err != nil {
			h.Log.Debug().Err(err).Str("client", client.ID).Msg("rejected message")
			h.Hub.SendError(client, err)
			continue
		}

		if j, ok := cmd.(ws.JoinRadio); ok {
			joined = radio.Normalize(j.RadioName)
		}
		if err := h.Dispatch(ctx, client, cmd); err != nil {
			h.logCommandError(client, cmd, err)
			h.Hub.SendError(client, err)
		}
	}
}

func (h *RadioHandler) writePump(client *ws.Client) {
	conn := client.Conn
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.Log.Debug().Err(err).Str("client", client.ID).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *RadioHandler) logCommandError(client *ws.Client, cmd ws.Command, err error) {
	ev := h.Log.Warn()
	if errors.Is(err, radio.ErrValidation) || errors.Is(err, radio.ErrConflict) || errors.Is(err, radio.ErrNotFound) {
		ev = h.Log.Debug()
	}
	ev.Err(err).Str("client", client.ID).Str("type", string(cmd.Type())).Msg("command failed")
}

// Dispatch runs one command for client. The returned error goes back to that
// client only.
func (h *RadioHandler) Dispatch(ctx context.Context, client *ws.Client, cmd ws.Command) error {
	switch cmd := cmd.(type) {
	case ws.GetAllRadios:
		h.Hub.Send(client, ws.TypeAllRadios, ws.AllRadiosData{Radios: h.Registry.Summaries()})
		return nil

	case ws.CreateRadio:
		st, err := h.Registry.Create(cmd.Name)
		if err != nil {
			return err
		}
		h.broadcastRoster()
		h.Hub.BroadcastGlobal(ws.TypeRadioCreated, ws.RadioNameData{Name: st.Name()})
		return nil

	case ws.RenameRadio:
		if _, err := h.Registry.Rename(cmd.OldName, cmd.NewName); err != nil {
			return err
		}
		h.broadcastRoster()
		h.Hub.BroadcastGlobal(ws.TypeRadioRenamed, ws.RadioRenamedData{
			OldName: radio.Normalize(cmd.OldName),
			NewName: radio.Normalize(cmd.NewName),
		})
		return nil

	case ws.DeleteRadio:
		if err := h.Registry.Delete(cmd.Name); err != nil {
			return err
		}
		h.broadcastRoster()
		h.Hub.BroadcastGlobal(ws.TypeRadioDeleted, ws.RadioNameData{Name: radio.Normalize(cmd.Name)})
		return nil

	case ws.JoinRadio:
		return h.join(client, cmd.RadioName)

	case ws.AddSong:
		return h.addSong(ctx, cmd)

	case ws.PlayPause:
		st, err := h.station(cmd.RadioName)
		if err != nil {
			return err
		}
		return st.TogglePlayPause()

	case ws.Skip:
		st, err := h.station(cmd.RadioName)
		if err != nil {
			return err
		}
		return st.Skip()
	}
	return ws.ErrBadMessage
}

func (h *RadioHandler) station(name string) (*radio.Station, error) {
	st := h.Registry.Get(name)
	if st == nil {
		return nil, radio.NotFound(name)
	}
	return st, nil
}

func (h *RadioHandler) broadcastRoster() {
	h.Hub.BroadcastGlobal(ws.TypeAllRadios, ws.AllRadiosData{Radios: h.Registry.Summaries()})
}

// join moves the client into the station's room, creating the station if it
// does not exist, and sends it the station's snapshot.
func (h *RadioHandler) join(client *ws.Client, name string) error {
	st, created, err := h.Registry.GetOrCreate(name)
	if err != nil {
		return err
	}
	if created {
		h.broadcastRoster()
		h.Hub.BroadcastGlobal(ws.TypeRadioCreated, ws.RadioNameData{Name: st.Name()})
	}

	var prev, key string
	err = st.WithState(func(state models.RadioState) {
		key = state.Name
		prev = h.Hub.Join(client, state.Name)
		h.Hub.Send(client, ws.TypeRadioState, state)
	})
	if err != nil {
		return err
	}

	if prev != "" && prev != key {
		if old := h.Registry.Get(prev); old != nil {
			old.Release()
		}
	}
	h.Log.Info().Str("client", client.ID).Str("station", key).Msg("client joined radio")
	return nil
}

// addSong resolves outside any station lock, then enqueues.
func (h *RadioHandler) addSong(ctx context.Context, cmd ws.AddSong) error {
	st, err := h.station(cmd.RadioName)
	if err != nil {
		return err
	}

	if h.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ResolveTimeout)
		defer cancel()
	}
	track, err := h.Resolver.Resolve(ctx, cmd.URL)
	if err != nil {
		return err
	}

	if _, err := st.Enqueue(track); err != nil {
		return err
	}
	h.Log.Info().Str("station", st.Name()).Str("track", track.Title).Str("origin", string(track.Origin)).Msg("song added")
	return nil
}
