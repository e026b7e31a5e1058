package session

import (
	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/services"
	"golang.org/x/oauth2"
)

// SpotifyExchanger returns an exchanger factory bound to the Spotify accounts service.
func SpotifyExchanger(redirectURI string, scopes []string) func(credentials.Credentials) Exchanger {
	return func(c credentials.Credentials) Exchanger {
		return services.NewSpotifyAuth(c.ClientID, c.ClientSecret, redirectURI, scopes)
	}
}

// SpotifyBuilder returns a [Builder] producing [services.SpotifyService] sessions.
//
// base supplies the API settings (base URL, device, rate limit, HTTP client); its token and
// refresh fields are filled per session. Without credentials the token cannot be refreshed.
func SpotifyBuilder(base services.SpotifyOptions, redirectURI string, scopes []string) Builder {
	return func(creds *credentials.Credentials, tok *oauth2.Token, onRefresh func(*oauth2.Token)) (services.Player, error) {
		opts := base
		opts.Token = tok
		opts.OnTokenRefresh = onRefresh
		opts.OAuth = nil
		if creds != nil {
			opts.OAuth = services.NewSpotifyAuth(creds.ClientID, creds.ClientSecret, redirectURI, scopes).Config()
		}
		return services.NewSpotifyService(opts)
	}
}
