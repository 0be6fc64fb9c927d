package resolver

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"github.com/google/uuid"
)

var (
	videoURLPattern = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([A-Za-z0-9_-]{11})`)
	videoIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractVideoID returns the 11-character video id in link, or "".
func ExtractVideoID(link string) string {
	if m := videoURLPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if videoIDPattern.MatchString(link) {
		return link
	}
	return ""
}

// WatchURL is the canonical link stored on a track.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// YouTube resolves video links through Piped.
type YouTube struct {
	Piped *Piped
}

func (y *YouTube) Resolve(ctx context.Context, link string) (models.Track, error) {
	id := ExtractVideoID(link)
	if id == "" {
		return models.Track{}, fmt.Errorf("%w: invalid video link %q", ErrUnsupported, link)
	}
	return y.byID(ctx, id, models.OriginYouTube)
}

func (y *YouTube) byID(ctx context.Context, id string, origin models.Origin) (models.Track, error) {
	s, err := y.Piped.Streams(ctx, id)
	if err != nil {
		return models.Track{}, err
	}
	if _, ok := s.BestAudio(); !ok {
		return models.Track{}, fmt.Errorf("%w: no audio stream for %s", ErrNotFound, id)
	}

	artist := s.Uploader
	if artist == "" {
		artist = "Unknown"
	}
	return models.Track{
		ID:              uuid.NewString(),
		Title:           s.Title,
		Artist:          artist,
		DurationSeconds: s.Duration,
		SourceURL:       WatchURL(id),
		Thumbnail:       s.ThumbnailURL,
		Origin:          origin,
	}, nil
}
