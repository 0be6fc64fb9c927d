package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/rs/zerolog"
)

// DefaultConsumerBuffer is the number of chunks a consumer may fall behind
// before it is disconnected.
const DefaultConsumerBuffer = 64

// Consumer is one downstream sink attached to a Session.
type Consumer struct {
	id uint64
	ch chan []byte
}

// C returns the chunk channel. It is closed when the consumer is detached,
// dropped for falling behind, or the session is closed.
func (c *Consumer) C() <-chan []byte {
	return c.ch
}

// Session owns at most one live pipeline for a station and replicates its
// output to every attached consumer.
type Session struct {
	encoder Encoder
	bufSize int
	log     zerolog.Logger

	mu        sync.RWMutex
	consumers map[uint64]*Consumer
	nextID    uint64

	pmu      sync.Mutex
	pipeline Pipeline
	gen      atomic.Uint64 // bumped whenever the live pipeline changes
}

// NewSession creates a session with no pipeline and no consumers.
func NewSession(encoder Encoder, bufSize int, log zerolog.Logger) *Session {
	if bufSize <= 0 {
		bufSize = DefaultConsumerBuffer
	}
	return &Session{
		encoder:   encoder,
		bufSize:   bufSize,
		log:       log,
		consumers: make(map[uint64]*Consumer),
	}
}

// Start replaces any running pipeline with a new one encoding track.
// onEnd is invoked once when the new pipeline terminates on its own; it is not
// invoked if the pipeline is superseded or stopped first.
func (s *Session) Start(track models.Track, onEnd func(err error)) {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	s.killLocked()
	gen := s.gen.Load()

	s.pipeline = s.encoder.Start(context.Background(), track, Handler{
		OnData: func(chunk []byte) {
			if s.gen.Load() != gen {
				return
			}
			s.broadcast(chunk)
		},
		OnTerminated: func(err error) {
			s.pmu.Lock()
			live := s.gen.Load() == gen
			if live {
				s.pipeline = nil
				s.gen.Add(1)
			}
			s.pmu.Unlock()

			if live && onEnd != nil {
				onEnd(err)
			}
		},
	})
	s.log.Debug().Str("track", track.Title).Uint64("generation", gen).Msg("pipeline started")
}

// Running reports whether a pipeline is currently live.
func (s *Session) Running() bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	return s.pipeline != nil
}

// Stop kills the live pipeline, if any, without signalling an end of track.
func (s *Session) Stop() {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	s.killLocked()
}

func (s *Session) killLocked() {
	// Bumping first makes any output still in flight from the old pipeline stale.
	s.gen.Add(1)
	if s.pipeline != nil {
		s.pipeline.Kill()
		s.pipeline = nil
	}
}

// Attach registers a new consumer. It only receives chunks produced after this call.
func (s *Session) Attach() *Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := &Consumer{id: s.nextID, ch: make(chan []byte, s.bufSize)}
	s.consumers[c.id] = c
	return c
}

// Detach removes a consumer and closes its channel. Detaching twice is harmless.
func (s *Session) Detach(c *Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Session) removeLocked(c *Consumer) bool {
	if _, ok := s.consumers[c.id]; !ok {
		return false
	}
	delete(s.consumers, c.id)
	close(c.ch)
	return true
}

// ConsumerCount returns the number of attached consumers.
func (s *Session) ConsumerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.consumers)
}

// Close kills the pipeline and detaches every consumer.
func (s *Session) Close() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.consumers {
		s.removeLocked(c)
	}
}

func (s *Session) broadcast(chunk []byte) {
	var slow []*Consumer

	s.mu.RLock()
	for _, c := range s.consumers {
		select {
		case c.ch <- chunk:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	s.mu.Lock()
	for _, c := range slow {
		if s.removeLocked(c) {
			s.log.Warn().Uint64("consumer", c.id).Msg("consumer fell behind, disconnecting")
		}
	}
	s.mu.Unlock()
}
