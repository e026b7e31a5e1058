// package services defines interface Player for driving a Spotify account over HTTP
package services

import (
	"context"
)

// Player is the authenticated session handle the dispatcher issues actions against.
type Player interface {
	// StartPlayback starts playing the given track URIs on the active (or configured) device.
	StartPlayback(ctx context.Context, uris []string) error

	// NextTrack skips to the next track in the user's queue.
	NextTrack(ctx context.Context) error

	// PreviousTrack skips to the previous track.
	PreviousTrack(ctx context.Context) error

	// Search runs a catalog search for a single item kind.
	Search(ctx context.Context, query string, kind SearchType, limit, offset int) (*SearchResult, error)
}

// SearchType selects the item kind a search returns.
type SearchType string

const SearchTrack SearchType = "track"

// SearchResult is a search response. Tracks is nil when the response carries no track page.
type SearchResult struct {
	Tracks *SpotifyPaginatedSearchTracks `json:"tracks,omitempty"`
}
