package models

// Origin names the platform a submitted link came from.
type Origin string

const (
	OriginYouTube Origin = "youtube"
	OriginSpotify Origin = "spotify"
)

// Track is a resolved, playable song. It is never mutated after resolution.
type Track struct {
	ID              string `json:"id"`                        // Unique identifier (UUID) assigned at resolution time
	Title           string `json:"title"`                     // Display title
	Artist          string `json:"artist,omitempty"`          // Uploader or artist, when known
	DurationSeconds int    `json:"durationSeconds,omitempty"` // Length in seconds, 0 when unknown
	SourceURL       string `json:"sourceUrl"`                 // Canonical video URL the audio is pulled from
	Thumbnail       string `json:"thumbnail,omitempty"`       // Artwork URL
	Origin          Origin `json:"origin"`                    // Platform of the link the user submitted
}

// QueueEntry wraps a Track waiting in a station's queue.
type QueueEntry struct {
	ID         string `json:"id"`         // Unique within the owning station
	Track      Track  `json:"track"`      // The queued track
	EnqueuedAt int64  `json:"enqueuedAt"` // Unix milliseconds
}
