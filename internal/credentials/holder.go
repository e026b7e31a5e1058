// Package credentials holds the user-supplied Spotify client identity and the token file location.
package credentials

import (
	"fmt"
	"sync"

	"github.com/desertthunder/spotify-nvim/internal/shared"
)

// Credentials identifies the Spotify application used for the OAuth handshake.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Snapshot is a consistent copy of the holder state. Credentials is nil until configured.
type Snapshot struct {
	Credentials   *Credentials
	TokenFilePath string
}

// Configured reports whether credentials have been set.
func (s Snapshot) Configured() bool {
	return s.Credentials != nil
}

// Holder provides thread-safe access to the client credentials and token file path.
// The dispatcher writes through [Holder.Configure]; the session manager reads snapshots.
type Holder struct {
	mu            sync.RWMutex
	creds         *Credentials
	tokenFilePath string
}

// NewHolder creates an unconfigured Holder with the given token file path.
// An empty path selects [shared.DefaultTokenFilePath].
func NewHolder(tokenFilePath string) *Holder {
	if tokenFilePath == "" {
		tokenFilePath = shared.DefaultTokenFilePath()
	}
	return &Holder{tokenFilePath: shared.ExpandPath(tokenFilePath)}
}

// Configure replaces the credentials and, when tokenFilePath is non-empty, the token file path.
//
// Both id and secret are required; otherwise [shared.ErrMissingCredentials] is returned and
// nothing changes.
func (h *Holder) Configure(creds Credentials, tokenFilePath string) error {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: client_id and client_secret are both required", shared.ErrMissingCredentials)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.creds = &creds
	if tokenFilePath != "" {
		h.tokenFilePath = shared.ExpandPath(tokenFilePath)
	}

	return nil
}

// Current returns the current snapshot.
func (h *Holder) Current() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := Snapshot{TokenFilePath: h.tokenFilePath}
	if h.creds != nil {
		c := *h.creds
		snap.Credentials = &c
	}
	return snap
}

// TokenFilePath returns the current token file path.
func (h *Holder) TokenFilePath() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.tokenFilePath
}
