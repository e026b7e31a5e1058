// Package server runs the short-lived loopback HTTP server used by `spotify-nvim login --listen`.
//
// # Callback
//
// [Callback.Prompt] has the same shape as the session manager's prompt: it receives the
// "Go to <url> ..." message, pulls the authorization URL and its state out of it, opens the
// browser, and blocks until Spotify redirects back to the loopback address. The full redirect
// URL is returned so the manager parses and exchanges it exactly as it would a pasted one.
//
// # OAuth handler
//
// [OAuthHandler] serves a single request. It rejects a mismatched state, reports an `error`
// parameter, and refuses any further callbacks.
//
// # Router
//
// [Router] wraps [http.ServeMux] with a middleware stack; [Logging] and [Recover] are applied
// to the callback route.
package server
