// Package session owns the lazily created, authenticated Spotify session.
//
// A [Manager] starts Uninitialized and becomes Ready the first time [Manager.EnsureReady]
// succeeds, either from the cached token file or through the interactive OAuth exchange.
// Ready is terminal: the manager never re-authenticates once it holds a session.
//
// Concurrent EnsureReady calls made while Uninitialized share a single in-flight
// initialization, so at most one token load or OAuth handshake runs and every caller
// receives the same session. A failed initialization leaves the manager Uninitialized and
// the next call starts over.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/services"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/tokenstore"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const flightKey = "session"

// Prompt asks the user for input and returns what they typed.
type Prompt func(ctx context.Context, message string) (string, error)

// Exchanger runs the two halves of the authorization-code flow.
type Exchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Builder creates a session from a token. creds is nil when the token was loaded before any
// credentials were configured. onRefresh must be called with every refreshed token.
type Builder func(creds *credentials.Credentials, tok *oauth2.Token, onRefresh func(*oauth2.Token)) (services.Player, error)

// Source records how a session was obtained.
type Source int

const (
	SourceCache Source = iota
	SourceTokenFile
	SourceOAuth
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceTokenFile:
		return "token file"
	case SourceOAuth:
		return "oauth"
	default:
		return "unknown"
	}
}

// Ready is the outcome of a successful [Manager.EnsureReady].
//
// Warnings carry non-fatal conditions met on the way: an unusable token cache
// ([shared.ErrTokenLoad]) or a token that could not be written back ([shared.ErrPersist]).
type Ready struct {
	Session  services.Player
	Source   Source
	Warnings []error
}

// Options configures a [Manager].
type Options struct {
	Holder       *credentials.Holder
	Store        tokenstore.Store
	NewExchanger func(credentials.Credentials) Exchanger
	Build        Builder
	Logger       *log.Logger
}

// Manager guards the single session handle.
type Manager struct {
	holder       *credentials.Holder
	store        tokenstore.Store
	newExchanger func(credentials.Credentials) Exchanger
	build        Builder
	logger       *log.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	session services.Player
}

// NewManager creates an Uninitialized manager.
func NewManager(opts Options) *Manager {
	if opts.Holder == nil {
		opts.Holder = credentials.NewHolder("")
	}
	if opts.Store == nil {
		opts.Store = tokenstore.FileStore{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.NewExchanger == nil {
		opts.NewExchanger = SpotifyExchanger("", nil)
	}
	if opts.Build == nil {
		opts.Build = SpotifyBuilder(services.SpotifyOptions{}, "", nil)
	}

	return &Manager{
		holder:       opts.Holder,
		store:        opts.Store,
		newExchanger: opts.NewExchanger,
		build:        opts.Build,
		logger:       shared.WithLogger(opts.Logger, "component", "session"),
	}
}

// Session returns the current session, or nil while Uninitialized.
func (m *Manager) Session() services.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session
}

// IsReady reports whether a session exists.
func (m *Manager) IsReady() bool {
	return m.Session() != nil
}

// EnsureReady returns the session, creating it first when needed.
//
// prompt is only called on the OAuth branch. There is no timeout on it beyond ctx.
func (m *Manager) EnsureReady(ctx context.Context, prompt Prompt) (*Ready, error) {
	if s := m.Session(); s != nil {
		return &Ready{Session: s, Source: SourceCache}, nil
	}

	v, err, joined := m.flight.Do(flightKey, func() (any, error) {
		return m.initialize(ctx, prompt)
	})
	if joined {
		m.logger.Debug("joined in-flight session initialization")
	}
	if err != nil {
		return nil, err
	}

	return v.(*Ready), nil
}

func (m *Manager) initialize(ctx context.Context, prompt Prompt) (*Ready, error) {
	// A flight that finished between the fast path and Do already stored a session.
	if s := m.Session(); s != nil {
		return &Ready{Session: s, Source: SourceCache}, nil
	}

	snap := m.holder.Current()
	var warnings []error

	rec, err := m.store.Load(snap.TokenFilePath)
	switch {
	case err == nil:
		s, buildErr := m.build(snap.Credentials, rec.OAuth2(), m.persistRefreshed)
		if buildErr == nil {
			m.setSession(s)
			m.logger.Info("initialized session from token file", "path", snap.TokenFilePath)
			return &Ready{Session: s, Source: SourceTokenFile}, nil
		}
		warnings = append(warnings, fmt.Errorf("%w: %v", shared.ErrTokenLoad, buildErr))
	case errors.Is(err, shared.ErrTokenNotFound):
		m.logger.Debug("no cached token", "path", snap.TokenFilePath)
	default:
		m.logger.Warn("cached token unusable, falling back to oauth", "path", snap.TokenFilePath, "error", err)
		warnings = append(warnings, fmt.Errorf("%w: %w", shared.ErrTokenLoad, err))
	}

	if !snap.Configured() {
		notConfigured := fmt.Errorf("%w: trying to initialize spotify without client credentials", shared.ErrNotConfigured)
		return nil, withWarnings(notConfigured, warnings)
	}

	tok, err := m.authorize(ctx, *snap.Credentials, prompt)
	if err != nil {
		return nil, withWarnings(err, warnings)
	}

	// Re-read the path: a config command may have moved it while the user was authorizing.
	path := m.holder.TokenFilePath()
	if err := m.store.Save(tokenstore.FromOAuth2(tok), path); err != nil {
		m.logger.Warn("failed to cache token", "path", path, "error", err)
		warnings = append(warnings, fmt.Errorf("%w: %w", shared.ErrPersist, err))
	}

	s, err := m.build(snap.Credentials, tok, m.persistRefreshed)
	if err != nil {
		return nil, withWarnings(fmt.Errorf("%w: building session: %v", shared.ErrOAuthExchange, err), warnings)
	}

	m.setSession(s)
	m.logger.Info("initialized session from oauth exchange")

	return &Ready{Session: s, Source: SourceOAuth, Warnings: warnings}, nil
}

// withWarnings joins err with the warnings gathered before it, err first.
func withWarnings(err error, warnings []error) error {
	if len(warnings) == 0 {
		return err
	}
	return errors.Join(append([]error{err}, warnings...)...)
}

// authorize runs the interactive authorization-code exchange.
func (m *Manager) authorize(ctx context.Context, creds credentials.Credentials, prompt Prompt) (*oauth2.Token, error) {
	if prompt == nil {
		return nil, fmt.Errorf("%w: no prompt available for authorization", shared.ErrOAuthExchange)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrOAuthExchange, err)
	}

	exchanger := m.newExchanger(creds)
	authURL := exchanger.AuthURL(state)

	m.logger.Info("waiting for user authorization")

	input, err := prompt(ctx, fmt.Sprintf("Go to %s and then paste the URL you're redirected to: ", authURL))
	if err != nil {
		return nil, fmt.Errorf("%w: prompt failed: %w", shared.ErrOAuthExchange, err)
	}

	code, err := ParseRedirect(input, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrOAuthExchange, err)
	}

	tok, err := exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrOAuthExchange, err)
	}

	return tok, nil
}

// persistRefreshed writes a refreshed token back to the current token file.
func (m *Manager) persistRefreshed(tok *oauth2.Token) {
	path := m.holder.TokenFilePath()
	if err := m.store.Save(tokenstore.FromOAuth2(tok), path); err != nil {
		m.logger.Warn("failed to cache refreshed token", "path", path, "error", err)
		return
	}
	m.logger.Debug("cached refreshed token", "path", path, "expiry", tok.Expiry)
}

func (m *Manager) setSession(s services.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = s
}
