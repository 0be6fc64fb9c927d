package radio

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/metrics"
	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/storage/memory"
	"github.com/Vasu1712/scenyx-radio/internal/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultEndDelay debounces the advance after a track ends or fails.
const DefaultEndDelay = 500 * time.Millisecond

// Options configures a Registry and the stations it creates.
type Options struct {
	Encoder        stream.Encoder
	Observer       Observer
	Rooms          Rooms
	ConsumerBuffer int
	EndDelay       time.Duration
	Defaults       []string // stations created at startup
	Metrics        *metrics.Metrics
	Log            zerolog.Logger
}

// Registry owns every station, keyed by normalized name.
//
// Lookups read an immutable map snapshot without locking; create, rename and
// delete serialize on mu and publish a new snapshot.
type Registry struct {
	mu       sync.Mutex
	stations atomic.Pointer[map[string]*Station]
	opts     Options
}

// NewRegistry creates a registry holding the configured default stations.
func NewRegistry(opts Options) *Registry {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Rooms == nil {
		opts.Rooms = nopRooms{}
	}
	if opts.EndDelay <= 0 {
		opts.EndDelay = DefaultEndDelay
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}

	r := &Registry{opts: opts}
	empty := make(map[string]*Station)
	r.stations.Store(&empty)

	for _, name := range opts.Defaults {
		if _, err := r.Create(name); err != nil {
			opts.Log.Warn().Err(err).Str("station", name).Msg("skipping default station")
		}
	}
	return r
}

func (r *Registry) snapshot() map[string]*Station {
	return *r.stations.Load()
}

// publish replaces the map; callers hold mu.
func (r *Registry) publish(m map[string]*Station) {
	r.stations.Store(&m)
	r.opts.Metrics.Stations.Set(float64(len(m)))
}

func (r *Registry) cloneLocked() map[string]*Station {
	cur := r.snapshot()
	next := make(map[string]*Station, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	return next
}

func (r *Registry) newStation(name string) *Station {
	log := r.opts.Log.With().Str("component", "station").Logger()
	return &Station{
		name:     name,
		queue:    memory.NewQueue(),
		session:  stream.NewSession(r.opts.Encoder, r.opts.ConsumerBuffer, log),
		observer: r.opts.Observer,
		rooms:    r.opts.Rooms,
		endDelay: r.opts.EndDelay,
		metrics:  r.opts.Metrics,
		log:      log,
	}
}

// Get returns the station with the given name, or nil.
func (r *Registry) Get(name string) *Station {
	return r.snapshot()[Normalize(name)]
}

// Create adds an empty station. It fails with ErrConflict if the normalized
// name is taken.
func (r *Registry) Create(name string) (*Station, error) {
	key, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshot()[key]; ok {
		return nil, fmt.Errorf("%w: %q", ErrConflict, key)
	}
	st := r.newStation(key)
	next := r.cloneLocked()
	next[key] = st
	r.publish(next)

	r.opts.Log.Info().Str("station", key).Msg("radio created")
	return st, nil
}

// GetOrCreate returns the named station, creating it if absent. created
// reports whether this call made it.
func (r *Registry) GetOrCreate(name string) (st *Station, created bool, err error) {
	key, err := ValidateName(name)
	if err != nil {
		return nil, false, err
	}
	if st := r.snapshot()[key]; st != nil {
		return st, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if st := r.snapshot()[key]; st != nil {
		return st, false, nil
	}
	st = r.newStation(key)
	next := r.cloneLocked()
	next[key] = st
	r.publish(next)

	r.opts.Log.Info().Str("station", key).Msg("radio created on join")
	return st, true, nil
}

// Rename moves a station to a new key together with its stream session and
// hub room. Either everything moves or nothing does. Errors are checked in
// order: NotFound, then Validation, then Conflict.
func (r *Registry) Rename(oldName, newName string) (*Station, error) {
	oldKey := Normalize(oldName)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snapshot()
	st, ok := cur[oldKey]
	if !ok {
		return nil, NotFound(oldKey)
	}
	newKey, err := ValidateName(newName)
	if err != nil {
		return nil, err
	}
	if newKey == oldKey {
		return nil, fmt.Errorf("%w: new name must differ from %q", ErrValidation, oldKey)
	}
	if _, taken := cur[newKey]; taken {
		return nil, fmt.Errorf("%w: %q", ErrConflict, newKey)
	}

	next := r.cloneLocked()
	delete(next, oldKey)
	next[newKey] = st

	// Hold the station lock across the room remap and the publish so no
	// station event is emitted under a stale key.
	st.mu.Lock()
	r.opts.Rooms.RenameRoom(oldKey, newKey)
	st.name = newKey
	r.publish(next)
	r.opts.Metrics.Forget(oldKey)
	st.mu.Unlock()

	r.opts.Log.Info().Str("from", oldKey).Str("to", newKey).Msg("radio renamed")
	return st, nil
}

// Delete removes a station, force-stops its pipeline and evicts its room.
func (r *Registry) Delete(name string) error {
	key := Normalize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.snapshot()[key]
	if !ok {
		return NotFound(key)
	}

	next := r.cloneLocked()
	delete(next, key)
	r.publish(next)
	st.close(fmt.Sprintf("radio %q has been deleted", key))

	r.opts.Log.Info().Str("station", key).Msg("radio deleted")
	return nil
}

func (r *Registry) sorted() []*Station {
	cur := r.snapshot()
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Station, 0, len(keys))
	for _, k := range keys {
		out = append(out, cur[k])
	}
	return out
}

// Summaries returns the roster, ordered by name.
func (r *Registry) Summaries() []models.RadioSummary {
	stations := r.sorted()
	out := make([]models.RadioSummary, 0, len(stations))
	for _, st := range stations {
		out = append(out, st.Summary())
	}
	return out
}

// States returns full snapshots of every station, ordered by name.
func (r *Registry) States() []models.RadioState {
	stations := r.sorted()
	out := make([]models.RadioState, 0, len(stations))
	for _, st := range stations {
		out = append(out, st.Snapshot())
	}
	return out
}

// Len returns the number of stations.
func (r *Registry) Len() int {
	return len(r.snapshot())
}

// Shutdown force-stops every station's session and refuses new playback:
// attaches and commands fail with ErrStopped and pending advances never fire.
// The registry stays readable.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.snapshot() {
		st.stop()
	}
	r.opts.Log.Info().Int("stations", len(r.snapshot())).Msg("registry shut down")
}

type nopObserver struct{}

func (nopObserver) QueueUpdated(string, []models.QueueEntry) {}
func (nopObserver) SongAdded(string, models.Track) {}
func (nopObserver) NowPlaying(string, *models.Track) {}
func (nopObserver) PlaybackState(string, bool) {}
func (nopObserver) StreamFailed(string, error) {}

type nopRooms struct{}

func (nopRooms) RoomSize(string) int { return 0 }
func (nopRooms) RenameRoom(string, string) {}
func (nopRooms) CloseRoom(string, string) {}
