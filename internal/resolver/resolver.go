// Package resolver turns user-submitted links into playable tracks.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Vasu1712/scenyx-radio/internal/models"
)

var (
	// ErrResolution is the root of every resolver failure.
	ErrResolution = errors.New("resolution failed")

	ErrUnsupported = fmt.Errorf("%w: unsupported link", ErrResolution)
	ErrNotFound    = fmt.Errorf("%w: no playable track found", ErrResolution)
	ErrUnavailable = fmt.Errorf("%w: upstream unavailable", ErrResolution)
)

// Resolver resolves one link into a Track with a fresh id.
type Resolver interface {
	Resolve(ctx context.Context, link string) (models.Track, error)
}

// Router picks a resolver by the link's host.
type Router struct {
	YouTube Resolver
	Spotify Resolver
}

func (r *Router) Resolve(ctx context.Context, link string) (models.Track, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return models.Track{}, fmt.Errorf("%w: %q", ErrUnsupported, link)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if r.YouTube == nil {
			break
		}
		return r.YouTube.Resolve(ctx, link)
	case host == "open.spotify.com":
		if r.Spotify == nil {
			break
		}
		return r.Spotify.Resolve(ctx, link)
	}
	return models.Track{}, fmt.Errorf("%w: %s", ErrUnsupported, host)
}

// IsResolution reports whether err came from a resolver.
func IsResolution(err error) bool {
	return errors.Is(err, ErrResolution)
}
