package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Vasu1712/scenyx-radio/internal/models"
	"golang.org/x/net/html"
)

const (
	DefaultSpotifyOEmbed = "https://open.spotify.com/oembed"
	DefaultSpotifyPages  = "https://open.spotify.com"
)

// Spotify resolves track links by looking up the title through oEmbed and
// searching for it on the video platform. The audio always comes from video.
type Spotify struct {
	OEmbedURL string
	PageURL   string // base for track pages, read for the artist name
	YouTube   *YouTube
	Client    *http.Client
}

func NewSpotify(yt *YouTube, timeout time.Duration) *Spotify {
	return &Spotify{
		OEmbedURL: DefaultSpotifyOEmbed,
		PageURL:   DefaultSpotifyPages,
		YouTube:   yt,
		Client:    &http.Client{Timeout: timeout},
	}
}

type oembed struct {
	Title string `json:"title"`
}

func (s *Spotify) Resolve(ctx context.Context, link string) (models.Track, error) {
	if !strings.Contains(link, "/track/") {
		return models.Track{}, fmt.Errorf("%w: only spotify track links are supported", ErrUnsupported)
	}

	title, err := s.title(ctx, link)
	if err != nil {
		return models.Track{}, err
	}

	query := title
	if artist := s.artist(ctx, link); artist != "" {
		query = title + " " + artist
	}

	id, err := s.YouTube.Piped.Search(ctx, query)
	if err != nil {
		return models.Track{}, err
	}
	return s.YouTube.byID(ctx, id, models.OriginSpotify)
}

func (s *Spotify) title(ctx context.Context, link string) (string, error) {
	endpoint := s.OEmbedURL + "?" + url.Values{"url": {link}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrResolution, err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: oembed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: spotify track %q", ErrNotFound, link)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: oembed status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("%w: read oembed: %v", ErrUnavailable, err)
	}
	var o oembed
	if err := json.Unmarshal(body, &o); err != nil {
		return "", fmt.Errorf("%w: parse oembed: %v", ErrResolution, err)
	}
	if strings.TrimSpace(o.Title) == "" {
		return "", fmt.Errorf("%w: spotify track %q has no title", ErrNotFound, link)
	}
	return o.Title, nil
}

// artist reads the first credited artist from the track page. It is best
// effort: any failure returns "" and the search runs on the title alone.
func (s *Spotify) artist(ctx context.Context, link string) string {
	u, err := url.Parse(link)
	if err != nil || s.PageURL == "" {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(s.PageURL, "/")+u.Path, nil)
	if err != nil {
		return ""
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}
	return musician(doc)
}

func musician(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		for _, a := range n.Attr {
			switch a.Key {
			case "name", "property":
				name = a.Val
			case "content":
				content = a.Val
			}
		}
		if name == "music:musician_description" {
			return strings.TrimSpace(content)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v := musician(c); v != "" {
			return v
		}
	}
	return ""
}
