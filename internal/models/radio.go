package models

// RadioState is the full snapshot of a station sent to clients when they join.
type RadioState struct {
	Name         string       `json:"name"`         // Normalized station name (registry key)
	Queue        []QueueEntry `json:"queue"`        // Pending entries in play order, never nil
	CurrentTrack *Track       `json:"currentTrack"` // Currently playing track, null when idle
	IsPlaying    bool         `json:"isPlaying"`    // Playback flag as last set by the controller
}

// RadioSummary is the roster line for a station.
type RadioSummary struct {
	Name        string `json:"name"`
	QueueLength int    `json:"queueLength"`
	IsPlaying   bool   `json:"isPlaying"`
}
