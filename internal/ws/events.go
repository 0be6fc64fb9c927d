package ws

import "github.com/Vasu1712/scenyx-radio/internal/models"

// The hub is the station observer: playback events go to the station's room.

func (h *Hub) QueueUpdated(station string, queue []models.QueueEntry) {
	h.BroadcastRoom(station, TypeQueueUpdated, QueueData{Queue: queue})
}

func (h *Hub) SongAdded(station string, track models.Track) {
	h.BroadcastRoom(station, TypeSongAdded, SongAddedData{Track: track})
}

func (h *Hub) NowPlaying(station string, track *models.Track) {
	h.BroadcastRoom(station, TypeNowPlaying, NowPlayingData{Track: track})
}

func (h *Hub) PlaybackState(station string, playing bool) {
	h.BroadcastRoom(station, TypePlaybackState, PlaybackData{IsPlaying: playing})
}

func (h *Hub) StreamFailed(station string, err error) {
	h.BroadcastRoom(station, TypeError, ErrorData{Message: "playback failed: " + err.Error()})
}
