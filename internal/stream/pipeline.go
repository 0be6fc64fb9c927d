package stream

import (
	"context"
	"errors"

	"github.com/Vasu1712/scenyx-radio/internal/models"
)

// ErrStream marks failures of an encode pipeline, either at start or mid-track.
var ErrStream = errors.New("stream error")

// Handler receives the output and the end of one pipeline.
//
// OnData is called from the pipeline's reader goroutine with a fresh slice per
// call; receivers must not modify it. OnTerminated is called at most once, with
// nil on a natural end of track, and is never called after Kill.
type Handler struct {
	OnData       func(chunk []byte)
	OnTerminated func(err error)
}

// Pipeline is a single running encode of one track.
type Pipeline interface {
	// Kill stops the pipeline and returns once it will produce no more output.
	// It must not wait for an in-flight OnTerminated call to return.
	Kill()
}

// Encoder launches pipelines. Start must not invoke the handler synchronously;
// every failure, including failing to locate the source, is reported through
// OnTerminated.
type Encoder interface {
	Start(ctx context.Context, track models.Track, h Handler) Pipeline
}
