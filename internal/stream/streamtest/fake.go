// Package streamtest provides an in-memory Encoder for tests.
package streamtest

import (
	"context"
	"sync"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/Vasu1712/scenyx-radio/internal/stream"
)

// Encoder records every pipeline it starts and lets tests drive them.
type Encoder struct {
	mu        sync.Mutex
	pipelines []*Pipeline
	started   chan *Pipeline
}

// NewEncoder creates a fake encoder.
func NewEncoder() *Encoder {
	return &Encoder{started: make(chan *Pipeline, 64)}
}

// Start implements stream.Encoder.
func (e *Encoder) Start(_ context.Context, track models.Track, h stream.Handler) stream.Pipeline {
	p := &Pipeline{Track: track, h: h}
	e.mu.Lock()
	e.pipelines = append(e.pipelines, p)
	e.mu.Unlock()

	select {
	case e.started <- p:
	default:
	}
	return p
}

// Started delivers each pipeline as it is launched.
func (e *Encoder) Started() <-chan *Pipeline {
	return e.started
}

// Pipelines returns every pipeline started so far, oldest first.
func (e *Encoder) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Pipeline(nil), e.pipelines...)
}

// Last returns the most recently started pipeline, or nil.
func (e *Encoder) Last() *Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pipelines) == 0 {
		return nil
	}
	return e.pipelines[len(e.pipelines)-1]
}

// Live returns the pipelines that were neither killed nor ended.
func (e *Encoder) Live() []*Pipeline {
	var live []*Pipeline
	for _, p := range e.Pipelines() {
		if !p.Killed() && !p.Ended() {
			live = append(live, p)
		}
	}
	return live
}

// Pipeline is a fake pipeline whose output is pushed by the test.
type Pipeline struct {
	Track models.Track

	mu     sync.Mutex
	h      stream.Handler
	killed bool
	ended  bool
}

// Emit delivers a chunk to the session unless the pipeline is finished.
func (p *Pipeline) Emit(chunk []byte) {
	p.mu.Lock()
	dead := p.killed || p.ended
	p.mu.Unlock()
	if dead || p.h.OnData == nil {
		return
	}
	p.h.OnData(append([]byte(nil), chunk...))
}

// End terminates the pipeline as if the track finished (err == nil) or crashed.
func (p *Pipeline) End(err error) {
	p.mu.Lock()
	if p.killed || p.ended {
		p.mu.Unlock()
		return
	}
	p.ended = true
	p.mu.Unlock()

	if p.h.OnTerminated != nil {
		p.h.OnTerminated(err)
	}
}

// Kill implements stream.Pipeline.
func (p *Pipeline) Kill() {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
}

// Killed reports whether Kill was called.
func (p *Pipeline) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// Ended reports whether End was called.
func (p *Pipeline) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}
