package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locatorFunc func(ctx context.Context, track models.Track) (string, error)

func (f locatorFunc) AudioURL(ctx context.Context, track models.Track) (string, error) {
	return f(ctx, track)
}

func TestFFmpegEncoder_Args(t *testing.T) {
	enc := NewFFmpegEncoder(FFmpegConfig{BitrateKbps: 96}, nil, zerolog.Nop())
	args := enc.Args("https://audio.example/src")

	assert.Contains(t, args, "-re")
	assert.Contains(t, args, "libmp3lame")
	assert.Contains(t, args, "96k")
	assert.Equal(t, "pipe:1", args[len(args)-1])

	for i, a := range args {
		if a == "-i" {
			require.Less(t, i+1, len(args))
			assert.Equal(t, "https://audio.example/src", args[i+1])
		}
	}
}

func TestFFmpegEncoder_Defaults(t *testing.T) {
	enc := NewFFmpegEncoder(FFmpegConfig{}, nil, zerolog.Nop())
	assert.Equal(t, "ffmpeg", enc.cfg.Path)
	assert.Equal(t, 128, enc.cfg.BitrateKbps)
	assert.Contains(t, enc.Args("x"), "128k")
}

func TestFFmpegEncoder_LocateFailureIsStreamError(t *testing.T) {
	lookup := errors.New("no audio streams")
	enc := NewFFmpegEncoder(FFmpegConfig{}, locatorFunc(func(context.Context, models.Track) (string, error) {
		return "", lookup
	}), zerolog.Nop())

	done := make(chan error, 1)
	enc.Start(context.Background(), models.Track{Title: "x"}, Handler{
		OnTerminated: func(err error) { done <- err },
	})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStream)
		assert.Contains(t, err.Error(), "no audio streams")
	case <-time.After(2 * time.Second):
		t.Fatal("expected termination")
	}
}

func TestFFmpegEncoder_KillSuppressesTermination(t *testing.T) {
	release := make(chan struct{})
	enc := NewFFmpegEncoder(FFmpegConfig{}, locatorFunc(func(ctx context.Context, _ models.Track) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "", errors.New("unreachable")
		}
	}), zerolog.Nop())

	called := make(chan struct{}, 1)
	p := enc.Start(context.Background(), models.Track{Title: "x"}, Handler{
		OnTerminated: func(error) { called <- struct{}{} },
	})
	p.Kill()
	close(release)

	select {
	case <-called:
		t.Fatal("OnTerminated called after Kill")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "defg", b.String())
}
