package radio

import (
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/stream/streamtest"
	"github.com/rs/zerolog"
)

type event struct {
	Kind    string
	Station string
	Queue   []models.QueueEntry
	Track   *models.Track
	Playing bool
	Err     error
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) QueueUpdated(station string, queue []models.QueueEntry) {
	r.add(event{Kind: "queue_updated", Station: station, Queue: queue})
}

func (r *recorder) SongAdded(station string, track models.Track) {
	r.add(event{Kind: "song_added", Station: station, Track: &track})
}

func (r *recorder) NowPlaying(station string, track *models.Track) {
	r.add(event{Kind: "now_playing", Station: station, Track: track})
}

func (r *recorder) PlaybackState(station string, playing bool) {
	r.add(event{Kind: "playback_state", Station: station, Playing: playing})
}

func (r *recorder) StreamFailed(station string, err error) {
	r.add(event{Kind: "error", Station: station, Err: err})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) kinds() []string {
	var out []string
	for _, e := range r.all() {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeRooms struct {
	mu      sync.Mutex
	sizes   map[string]int
	renames [][2]string
	closed  map[string]string
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{sizes: make(map[string]int), closed: make(map[string]string)}
}

func (f *fakeRooms) RoomSize(station string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sizes[station]
}

func (f *fakeRooms) RenameRoom(oldName, newName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[newName] = f.sizes[oldName]
	delete(f.sizes, oldName)
	f.renames = append(f.renames, [2]string{oldName, newName})
}

func (f *fakeRooms) CloseRoom(station, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sizes, station)
	f.closed[station] = reason
}

func (f *fakeRooms) set(station string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[station] = n
}

type fixture struct {
	reg   *Registry
	enc   *streamtest.Encoder
	obs   *recorder
	rooms *fakeRooms
}

func newFixture(defaults ...string) *fixture {
	f := &fixture{
		enc:   streamtest.NewEncoder(),
		obs:   &recorder{},
		rooms: newFakeRooms(),
	}
	f.reg = NewRegistry(Options{
		Encoder:        f.enc,
		Observer:       f.obs,
		Rooms:          f.rooms,
		ConsumerBuffer: 8,
		EndDelay:       10 * time.Millisecond,
		Defaults:       defaults,
		Log:            zerolog.Nop(),
	})
	return f
}

func song(title string) models.Track {
	return models.Track{ID: title, Title: title, SourceURL: "https://www.youtube.com/watch?v=" + title, Origin: models.OriginYouTube}
}
