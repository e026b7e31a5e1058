// Package services defines the [Player] interface the bridge drives and implements it for the Spotify Web API.
//
// # Spotify
//
// [SpotifyAuth] wraps an [oauth2.Config] for the accounts service: it builds the authorization URL
// (offline access, caller-supplied state) and exchanges the returned code for a token. Client
// credentials travel in the Authorization header.
//
// [SpotifyService] issues the player and search calls over an [oauth2.Client]. When it was built
// with an OAuth config the transport refreshes an expired access token on its own, and the
// OnTokenRefresh callback sees every new token so it can be cached again.
//
// Outbound requests wait on a [rate.Limiter] first.
//
// # Errors
//
// Non-2xx responses decode Spotify's error envelope into [*APIError]. A 401 matches
// [shared.ErrTokenExpired] under [errors.Is].
package services
