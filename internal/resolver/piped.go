package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/rs/zerolog"
)

// DefaultMirrors are tried in order until one answers.
var DefaultMirrors = []string{
	"https://pipedapi.namazso.eu",
	"https://pipedapi.syncpundit.io",
	"https://pipedapi.leptons.xyz",
	"https://pipedapi.adminforge.de",
	"https://pipedapi.kavin.rocks",
}

type PipedConfig struct {
	Mirrors []string
	Timeout time.Duration
}

// Piped is a client for the Piped API with mirror fallback. It provides
// video metadata, search and raw audio URLs.
type Piped struct {
	cfg    PipedConfig
	client *http.Client
	log    zerolog.Logger
}

func NewPiped(cfg PipedConfig, log zerolog.Logger) *Piped {
	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = DefaultMirrors
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Piped{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With().Str("component", "piped").Logger(),
	}
}

type AudioStream struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Bitrate  int    `json:"bitrate"`
}

// Streams is the subset of /streams/{id} the server uses.
type Streams struct {
	Title        string        `json:"title"`
	Uploader     string        `json:"uploader"`
	Duration     int           `json:"duration"` // seconds
	ThumbnailURL string        `json:"thumbnailUrl"`
	AudioStreams []AudioStream `json:"audioStreams"`
}

// BestAudio returns the highest-bitrate audio stream.
func (s *Streams) BestAudio() (AudioStream, bool) {
	var best AudioStream
	found := false
	for _, a := range s.AudioStreams {
		if a.URL == "" {
			continue
		}
		if !found || a.Bitrate > best.Bitrate {
			best, found = a, true
		}
	}
	return best, found
}

type searchResult struct {
	Items []struct {
		URL   string `json:"url"` // "/watch?v=<id>"
		Type  string `json:"type"`
		Title string `json:"title"`
	} `json:"items"`
}

// Streams fetches metadata and audio streams for a video.
func (p *Piped) Streams(ctx context.Context, videoID string) (*Streams, error) {
	var s Streams
	if err := p.get(ctx, "/streams/"+url.PathEscape(videoID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Search returns the video id of the first result for query.
func (p *Piped) Search(ctx context.Context, query string) (string, error) {
	var res searchResult
	q := url.Values{"q": {query}, "filter": {"videos"}}
	if err := p.get(ctx, "/search?"+q.Encode(), &res); err != nil {
		return "", err
	}
	for _, item := range res.Items {
		if item.Type != "" && item.Type != "stream" {
			continue
		}
		if id := ExtractVideoID("https://www.youtube.com" + item.URL); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no results for %q", ErrNotFound, query)
}

// AudioURL looks up the raw audio URL the encoder pulls from.
func (p *Piped) AudioURL(ctx context.Context, track models.Track) (string, error) {
	id := ExtractVideoID(track.SourceURL)
	if id == "" {
		return "", fmt.Errorf("%w: %q has no video id", ErrUnsupported, track.SourceURL)
	}
	s, err := p.Streams(ctx, id)
	if err != nil {
		return "", err
	}
	audio, ok := s.BestAudio()
	if !ok {
		return "", fmt.Errorf("%w: no audio stream for %s", ErrNotFound, id)
	}
	return audio.URL, nil
}

func (p *Piped) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for _, mirror := range p.cfg.Mirrors {
		err := p.getFrom(ctx, mirror+path, out)
		if err == nil {
			p.log.Debug().Str("mirror", mirror).Str("path", path).Msg("piped request ok")
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		p.log.Warn().Err(err).Str("mirror", mirror).Msg("piped mirror failed")
		lastErr = err
	}
	return fmt.Errorf("%w: no piped mirror available: %v", ErrUnavailable, lastErr)
}

func (p *Piped) getFrom(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}
