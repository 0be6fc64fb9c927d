package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoID = "dQw4w9WgXcQ"

func pipedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/streams/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/streams/")
		if id != testVideoID {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(Streams{
			Title:        "Never Gonna Give You Up",
			Uploader:     "Rick Astley",
			Duration:     213,
			ThumbnailURL: "https://img.example/thumb.jpg",
			AudioStreams: []AudioStream{
				{URL: "https://audio.example/low", Bitrate: 48000},
				{URL: "https://audio.example/high", Bitrate: 160000},
				{URL: "", Bitrate: 320000},
			},
		})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"items":[{"url":"/channel/abc","type":"channel"},{"url":"/watch?v=` + testVideoID + `","type":"stream","title":"x"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func brokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPiped(mirrors ...string) *Piped {
	return NewPiped(PipedConfig{Mirrors: mirrors, Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", testVideoID},
		{"https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=10", testVideoID},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", testVideoID},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", testVideoID},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", testVideoID},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", testVideoID},
		{"dQw4w9WgXcQ", testVideoID},
		{"https://www.youtube.com/", ""},
		{"https://example.com/watch?v=short", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractVideoID(tt.in), tt.in)
	}
}

type stubResolver struct {
	name  string
	calls atomic.Int32
}

func (s *stubResolver) Resolve(_ context.Context, link string) (models.Track, error) {
	s.calls.Add(1)
	return models.Track{Title: s.name, SourceURL: link}, nil
}

func TestRouter(t *testing.T) {
	yt := &stubResolver{name: "yt"}
	sp := &stubResolver{name: "sp"}
	r := &Router{YouTube: yt, Spotify: sp}
	ctx := context.Background()

	for _, link := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
	} {
		got, err := r.Resolve(ctx, link)
		require.NoError(t, err)
		assert.Equal(t, "yt", got.Title)
	}

	got, err := r.Resolve(ctx, "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT")
	require.NoError(t, err)
	assert.Equal(t, "sp", got.Title)

	_, err = r.Resolve(ctx, "https://soundcloud.com/some/track")
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.True(t, IsResolution(err))

	_, err = r.Resolve(ctx, "not a link")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPiped_MirrorFallback(t *testing.T) {
	good := pipedServer(t)
	p := newPiped(brokenServer(t).URL, good.URL)

	s, err := p.Streams(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", s.Title)
	assert.Equal(t, 213, s.Duration)
}

func TestPiped_AllMirrorsFail(t *testing.T) {
	p := newPiped(brokenServer(t).URL, brokenServer(t).URL)

	_, err := p.Streams(context.Background(), testVideoID)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestPiped_AudioURLPicksBestStream(t *testing.T) {
	p := newPiped(pipedServer(t).URL)

	u, err := p.AudioURL(context.Background(), models.Track{SourceURL: WatchURL(testVideoID)})
	require.NoError(t, err)
	assert.Equal(t, "https://audio.example/high", u)

	_, err = p.AudioURL(context.Background(), models.Track{SourceURL: "https://example.com"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestYouTube_Resolve(t *testing.T) {
	yt := &YouTube{Piped: newPiped(pipedServer(t).URL)}

	track, err := yt.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.NotEmpty(t, track.ID)
	assert.Equal(t, "Never Gonna Give You Up", track.Title)
	assert.Equal(t, "Rick Astley", track.Artist)
	assert.Equal(t, 213, track.DurationSeconds)
	assert.Equal(t, WatchURL(testVideoID), track.SourceURL)
	assert.Equal(t, models.OriginYouTube, track.Origin)

	_, err = yt.Resolve(context.Background(), "https://www.youtube.com/watch?v=aaaaaaaaaaa")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = yt.Resolve(context.Background(), "https://www.youtube.com/feed")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSpotify_Resolve(t *testing.T) {
	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("url"), "/track/") {
			http.Error(w, "bad", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"title":"Never Gonna Give You Up","type":"rich"}`))
	}))
	t.Cleanup(oembed.Close)

	sp := NewSpotify(&YouTube{Piped: newPiped(pipedServer(t).URL)}, 2*time.Second)
	sp.OEmbedURL = oembed.URL
	sp.PageURL = oembed.URL

	track, err := sp.Resolve(context.Background(), "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT")
	require.NoError(t, err)
	assert.Equal(t, models.OriginSpotify, track.Origin)
	assert.Equal(t, WatchURL(testVideoID), track.SourceURL)

	_, err = sp.Resolve(context.Background(), "https://open.spotify.com/album/1")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSpotify_SearchIncludesArtist(t *testing.T) {
	var query atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Never Gonna Give You Up"}`))
	})
	mux.HandleFunc("/track/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:title" content="Never Gonna Give You Up"/>` +
			`<meta name="music:musician_description" content="Rick Astley"/></head><body></body></html>`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("q"))
		w.Write([]byte(`{"items":[{"url":"/watch?v=` + testVideoID + `","type":"stream"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	// Search answers from srv; stream lookups fall through to the full mirror.
	sp := NewSpotify(&YouTube{Piped: newPiped(srv.URL, pipedServer(t).URL)}, 2*time.Second)
	sp.OEmbedURL = srv.URL + "/oembed"
	sp.PageURL = srv.URL

	track, err := sp.Resolve(context.Background(), "https://open.spotify.com/track/4cOdK2wGLETKBW3PvgPWqT?si=abc")
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up Rick Astley", query.Load())
	assert.Equal(t, models.OriginSpotify, track.Origin)
}

type memCache struct {
	mu     sync.Mutex
	tracks map[string]models.Track
	fail   bool
}

func (m *memCache) Get(_ context.Context, link string) (models.Track, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return models.Track{}, false, errors.New("cache down")
	}
	t, ok := m.tracks[link]
	return t, ok, nil
}

func (m *memCache) Set(_ context.Context, link string, t models.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("cache down")
	}
	m.tracks[link] = t
	return nil
}

func TestCached_HitsCacheWithFreshIDs(t *testing.T) {
	next := &stubResolver{name: "song"}
	c := NewCached(next, &memCache{tracks: map[string]models.Track{}}, zerolog.Nop())
	ctx := context.Background()

	first, err := c.Resolve(ctx, "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	second, err := c.Resolve(ctx, " https://youtu.be/dQw4w9WgXcQ ")
	require.NoError(t, err)

	assert.EqualValues(t, 1, next.calls.Load())
	assert.Equal(t, first.Title, second.Title)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCached_BypassesBrokenCache(t *testing.T) {
	next := &stubResolver{name: "song"}
	c := NewCached(next, &memCache{tracks: map[string]models.Track{}, fail: true}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, next.calls.Load())
}

type slowResolver struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowResolver) Resolve(ctx context.Context, link string) (models.Track, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
		return models.Track{Title: "slow", SourceURL: link}, nil
	case <-ctx.Done():
		return models.Track{}, ctx.Err()
	}
}

func TestCached_CallerCancelDoesNotFailOthers(t *testing.T) {
	next := &slowResolver{release: make(chan struct{})}
	c := NewCached(next, &memCache{tracks: map[string]models.Track{}}, zerolog.Nop())
	const link = "https://youtu.be/dQw4w9WgXcQ"

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctxA, link)
		errA <- err
	}()
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		track models.Track
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		tr, err := c.Resolve(context.Background(), link)
		resB <- result{tr, err}
	}()
	// Give the second caller time to join the in-flight resolve.
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, ErrUnavailable)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(next.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "slow", r.track.Title)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.EqualValues(t, 1, next.calls.Load())
}
