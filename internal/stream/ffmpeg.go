package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/rs/zerolog"
)

// SourceLocator turns a resolved track into a raw audio URL ffmpeg can read.
type SourceLocator interface {
	AudioURL(ctx context.Context, track models.Track) (string, error)
}

// FFmpegConfig controls the encoder process.
type FFmpegConfig struct {
	Path        string // ffmpeg binary
	BitrateKbps int    // constant output bitrate
	ChunkSize   int    // stdout read size
}

// FFmpegEncoder transcodes a track's audio to constant-bitrate MP3 in real time.
type FFmpegEncoder struct {
	cfg     FFmpegConfig
	locator SourceLocator
	log     zerolog.Logger
}

// NewFFmpegEncoder creates an encoder. Zero config values fall back to defaults.
func NewFFmpegEncoder(cfg FFmpegConfig, locator SourceLocator, log zerolog.Logger) *FFmpegEncoder {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = 128
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4096
	}
	return &FFmpegEncoder{cfg: cfg, locator: locator, log: log}
}

// Args returns the ffmpeg argument list for reading from src.
// -re paces the output at playback speed so fan-out runs in real time.
func (e *FFmpegEncoder) Args(src string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-re",
		"-i", src,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(e.cfg.BitrateKbps) + "k",
		"-f", "mp3",
		"-flush_packets", "1",
		"pipe:1",
	}
}

// Start launches the pipeline in the background.
func (e *FFmpegEncoder) Start(ctx context.Context, track models.Track, h Handler) Pipeline {
	ctx, cancel := context.WithCancel(ctx)
	p := &ffmpegPipeline{cancel: cancel, done: make(chan struct{})}

	go func() {
		err := e.run(ctx, track, h.OnData)
		close(p.done)
		if p.killed.Load() {
			return
		}
		if h.OnTerminated != nil {
			h.OnTerminated(err)
		}
	}()
	return p
}

func (e *FFmpegEncoder) run(ctx context.Context, track models.Track, onData func([]byte)) error {
	src, err := e.locator.AudioURL(ctx, track)
	if err != nil {
		return fmt.Errorf("%w: locate audio for %q: %v", ErrStream, track.Title, err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Path, e.Args(src)...)
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrStream, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrStream, err)
	}
	e.log.Debug().Str("track", track.Title).Int("pid", cmd.Process.Pid).Msg("ffmpeg started")

	var readErr error
	for {
		buf := make([]byte, e.cfg.ChunkSize)
		n, err := stdout.Read(buf)
		if n > 0 && onData != nil {
			onData(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				readErr = err
			}
			break
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if readErr != nil {
		return fmt.Errorf("%w: read ffmpeg output: %v", ErrStream, readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("%w: ffmpeg exited: %v: %s", ErrStream, waitErr, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type ffmpegPipeline struct {
	cancel context.CancelFunc
	done   chan struct{}
	killed atomic.Bool
}

func (p *ffmpegPipeline) Kill() {
	p.killed.Store(true)
	p.cancel()
	<-p.done
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
