package radio

import (
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/metrics"
	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/storage/memory"
	"github.com/Vasu1712/scenyx-radio/internal/stream"
	"github.com/rs/zerolog"
)

// Observer receives the station-scoped events produced by playback.
// Calls are made while the station's lock is held, so the name passed is
// always the station's current key.
type Observer interface {
	QueueUpdated(station string, queue []models.QueueEntry)
	SongAdded(station string, track models.Track)
	NowPlaying(station string, track *models.Track)
	PlaybackState(station string, playing bool)
	StreamFailed(station string, err error)
}

// Rooms is the part of the broadcast hub the registry coordinates with.
type Rooms interface {
	RoomSize(station string) int
	RenameRoom(oldName, newName string)
	CloseRoom(station, reason string)
}

// Station is one radio: its queue, playback state and stream session.
// Every read-modify-write of that state happens under mu.
type Station struct {
	mu      sync.Mutex
	name    string
	queue   *memory.Queue
	current *models.Track
	playing bool
	deleted bool
	stopped bool // set by Registry.Shutdown

	// playID identifies the current track; end-of-track signals carrying an
	// older id are ignored.
	playID uint64
	// ending is set between a natural end of track and the debounced advance.
	ending bool

	session  *stream.Session
	observer Observer
	rooms    Rooms
	endDelay time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// Name returns the station's current normalized name.
func (s *Station) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Snapshot returns the full state of the station.
func (s *Station) Snapshot() models.RadioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Station) checkLocked() error {
	switch {
	case s.deleted:
		return NotFound(s.name)
	case s.stopped:
		return ErrStopped
	}
	return nil
}

func (s *Station) snapshotLocked() models.RadioState {
	state := models.RadioState{
		Name:      s.name,
		Queue:     s.queue.Entries(),
		IsPlaying: s.playing,
	}
	if s.current != nil {
		t := *s.current
		state.CurrentTrack = &t
	}
	return state
}

// Summary returns the roster line for the station.
func (s *Station) Summary() models.RadioSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.RadioSummary{
		Name:        s.name,
		QueueLength: s.queue.Len(),
		IsPlaying:   s.playing,
	}
}

// WithState runs fn with a consistent snapshot while holding the station lock,
// so no station event can be emitted between the snapshot and whatever fn
// does with it. fn must not call back into the station.
func (s *Station) WithState(fn func(state models.RadioState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	fn(s.snapshotLocked())
	return nil
}

// Enqueue appends a resolved track and starts playback if the station is idle.
func (s *Station) Enqueue(track models.Track) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return models.QueueEntry{}, err
	}

	entry := s.queue.Enqueue(track)
	s.metrics.TracksQueued.WithLabelValues(s.name).Inc()
	s.observer.QueueUpdated(s.name, s.queue.Entries())
	s.observer.SongAdded(s.name, track)

	if s.current == nil {
		s.advanceLocked()
	}
	return entry, nil
}

// Remove drops a pending entry. Unknown ids are ignored.
func (s *Station) Remove(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	before := s.queue.Len()
	s.queue.Remove(entryID)
	if s.queue.Len() != before {
		s.observer.QueueUpdated(s.name, s.queue.Entries())
	}
	return nil
}

// Advance moves to the next queued track, or to idle if the queue is empty.
func (s *Station) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.advanceLocked()
	return nil
}

// Skip discards the current track and advances.
func (s *Station) Skip() error {
	return s.Advance()
}

// TogglePlayPause flips the playback flag. From idle with a non-empty queue it
// starts playback instead. The flag does not start or stop the audio pipeline.
func (s *Station) TogglePlayPause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	if s.current == nil {
		if s.queue.Len() > 0 {
			s.advanceLocked()
			return nil
		}
		// Nothing to play; resend the flag so clients resync.
		s.observer.PlaybackState(s.name, false)
		return nil
	}

	s.playing = !s.playing
	s.observer.PlaybackState(s.name, s.playing)
	return nil
}

func (s *Station) advanceLocked() {
	s.playID++
	s.ending = false

	entry, ok := s.queue.DequeueNext()
	if !ok {
		s.current = nil
		s.playing = false
		s.session.Stop()
		s.observer.NowPlaying(s.name, nil)
		s.observer.PlaybackState(s.name, false)
	} else {
		track := entry.Track
		s.current = &track
		s.playing = true
		s.startLocked()
		s.observer.NowPlaying(s.name, &track)
		s.observer.PlaybackState(s.name, true)
	}

	s.observer.QueueUpdated(s.name, s.queue.Entries())
}

func (s *Station) startLocked() {
	if s.stopped {
		return
	}
	id := s.playID
	track := *s.current
	s.metrics.PipelinesStarted.WithLabelValues(s.name).Inc()
	s.log.Info().Str("station", s.name).Str("track", track.Title).Msg("now playing")
	s.session.Start(track, func(err error) {
		s.trackEnded(id, err)
	})
}

// trackEnded is the pipeline's termination callback. It runs on the pipeline's
// goroutine and schedules the debounced advance.
func (s *Station) trackEnded(id uint64, err error) {
	s.mu.Lock()
	if s.deleted || s.stopped || s.playID != id {
		s.mu.Unlock()
		return
	}
	s.ending = true
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues(s.name).Inc()
		s.log.Warn().Err(err).Str("station", s.name).Msg("pipeline failed, advancing")
		s.observer.StreamFailed(s.name, err)
	} else {
		s.log.Debug().Str("station", s.name).Msg("track finished")
	}
	s.mu.Unlock()

	time.AfterFunc(s.endDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.deleted || s.stopped || s.playID != id {
			return
		}
		s.advanceLocked()
	})
}

// Attach adds a stream consumer, starting the pipeline for the current track
// or advancing into the queue when nothing is being encoded.
func (s *Station) Attach() (*stream.Consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return nil, err
	}

	c := s.session.Attach()
	if !s.session.Running() && !s.ending {
		switch {
		case s.current != nil:
			s.startLocked()
		case s.queue.Len() > 0:
			s.advanceLocked()
		}
	}
	return c, nil
}

// Detach removes a stream consumer and releases the pipeline if nobody is left.
func (s *Station) Detach(c *stream.Consumer) {
	s.session.Detach(c)
	s.Release()
}

// Release stops the pipeline when the station has neither stream consumers
// nor room members.
func (s *Station) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted || s.stopped || !s.session.Running() {
		return
	}
	if s.session.ConsumerCount() == 0 && s.rooms.RoomSize(s.name) == 0 {
		s.session.Stop()
		s.log.Debug().Str("station", s.name).Msg("no audience, pipeline stopped")
	}
}

// ListenerCount returns the number of attached stream consumers.
func (s *Station) ListenerCount() int {
	return s.session.ConsumerCount()
}

// stop force-closes the session for good. Later commands fail with
// ErrStopped and pending advances are dropped.
func (s *Station) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.session.Close()
}

// close marks the station deleted and tears down its session and room.
// Called with the registry lock held.
func (s *Station) close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return
	}
	s.deleted = true
	s.session.Close()
	if reason != "" {
		s.rooms.CloseRoom(s.name, reason)
	}
	s.metrics.Forget(s.name)
}
