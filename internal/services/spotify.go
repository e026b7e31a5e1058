// Spotify API implementation of [Player]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/desertthunder/spotify-nvim/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// DefaultScopes covers the player endpoints. Search needs no scope.
var DefaultScopes = []string{"user-modify-playback-state"}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist is the simplified artist object embedded in tracks and albums.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum is the simplified album object embedded in tracks.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	URI         string          `json:"uri"`
}

// page carries the paging fields shared by every paginated response.
type page struct {
	Href     string  `json:"href"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// SpotifyPaginatedSearchTracks represents the track page of a search response.
type SpotifyPaginatedSearchTracks struct {
	page
	Items []SpotifyTrack `json:"items"`
}

// APIError is a non-2xx Web API response.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("spotify API error: status %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is matches [shared.ErrTokenExpired] for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == shared.ErrTokenExpired && e.Status == http.StatusUnauthorized
}

// SpotifyAuth builds authorization URLs and exchanges authorization codes with the Spotify accounts service.
type SpotifyAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewSpotifyAuth creates an OAuth2 helper for the given client identity.
// An empty redirectURI or scope list falls back to the defaults the plugin registers with.
func NewSpotifyAuth(clientID, clientSecret, redirectURI string, scopes []string) *SpotifyAuth {
	if redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &SpotifyAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	}
}

// WithEndpoint overrides the accounts service endpoints.
func (a *SpotifyAuth) WithEndpoint(authURL, tokenURL string) *SpotifyAuth {
	a.config.Endpoint.AuthURL = authURL
	a.config.Endpoint.TokenURL = tokenURL
	return a
}

// WithHTTPClient sets the client used for the token exchange.
func (a *SpotifyAuth) WithHTTPClient(c *http.Client) *SpotifyAuth {
	a.httpClient = c
	return a
}

// Config returns the underlying [oauth2.Config].
func (a *SpotifyAuth) Config() *oauth2.Config {
	return a.config
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (a *SpotifyAuth) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (a *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	// OAuth is used to refresh the access token. Without it the token is used as-is.
	OAuth *oauth2.Config
	Token *oauth2.Token

	BaseURL  string
	DeviceID string

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int

	// HTTPClient is the base client beneath the oauth2 transport.
	HTTPClient *http.Client

	// OnTokenRefresh is called whenever the token source yields a new access token.
	OnTokenRefresh func(*oauth2.Token)
}

// SpotifyService implements the [Player] interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides the player and search endpoints.
type SpotifyService struct {
	baseURL    string
	deviceID   string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     *refreshableTokenSource
}

// NewSpotifyService creates a new Spotify session from an existing token.
func NewSpotifyService(opts SpotifyOptions) (*SpotifyService, error) {
	if opts.Token == nil || opts.Token.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", shared.ErrInvalidArgument)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	var src oauth2.TokenSource
	if opts.OAuth != nil {
		src = opts.OAuth.TokenSource(ctx, opts.Token)
	} else {
		src = oauth2.StaticTokenSource(opts.Token)
	}

	tokens := &refreshableTokenSource{
		source:   src,
		callback: opts.OnTokenRefresh,
		last:     opts.Token.AccessToken,
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &SpotifyService{
		baseURL:    opts.BaseURL,
		deviceID:   opts.DeviceID,
		httpClient: oauth2.NewClient(ctx, tokens),
		limiter:    rate.NewLimiter(limit, burst),
		tokens:     tokens,
	}, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, query url.Values, body any, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Error.Message
		apiErr.Reason = envelope.Error.Reason
	}

	return apiErr
}

func (s *SpotifyService) deviceQuery() url.Values {
	if s.deviceID == "" {
		return nil
	}
	return url.Values{"device_id": {s.deviceID}}
}

// StartPlayback starts playback of the given track URIs.
func (s *SpotifyService) StartPlayback(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs provided", shared.ErrInvalidArgument)
	}
	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}
	return s.doRequest(ctx, http.MethodPut, "/me/player/play", s.deviceQuery(), body, nil)
}

// NextTrack skips to the next track.
func (s *SpotifyService) NextTrack(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPost, "/me/player/next", s.deviceQuery(), nil, nil)
}

// PreviousTrack skips to the previous track.
func (s *SpotifyService) PreviousTrack(ctx context.Context) error {
	return s.doRequest(ctx, http.MethodPost, "/me/player/previous", s.deviceQuery(), nil, nil)
}

// Search queries the catalog for a single item kind.
func (s *SpotifyService) Search(ctx context.Context, query string, kind SearchType, limit, offset int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{
		"q":      {query},
		"type":   {string(kind)},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var result SearchResult
	if err := s.doRequest(ctx, http.MethodGet, "/search", params, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and reports each new access token.
// callback is fixed at construction.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

// Token implements [oauth2.TokenSource].
func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}

	return token, nil
}
