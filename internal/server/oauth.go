package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult is the outcome of one OAuth redirect.
type CallbackResult struct {
	// RedirectURL is the full URL the browser was sent to, query included.
	RedirectURL string
	Err         error
}

// OAuthHandler accepts a single authorization-code redirect and hands it back over a channel.
// It checks the state but does not exchange the code.
type OAuthHandler struct {
	path     string
	state    string
	baseURL  string
	results  chan CallbackResult
	once     sync.Once
	mu       sync.Mutex
	consumed bool
}

// NewOAuthHandler creates a handler for path that expects state. baseURL is the scheme and
// host used to rebuild the redirect URL.
func NewOAuthHandler(path, state, baseURL string) *OAuthHandler {
	if path == "" {
		path = "/callback"
	}
	return &OAuthHandler{
		path:    path,
		state:   state,
		baseURL: baseURL,
		results: make(chan CallbackResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{h.path}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.consumed {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.consumed = true
	h.mu.Unlock()

	q := r.URL.Query()

	if q.Get("state") != h.state {
		h.send(CallbackResult{Err: errors.New("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	if q.Get("code") == "" {
		h.send(CallbackResult{Err: fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.send(CallbackResult{RedirectURL: h.baseURL + r.URL.RequestURI()})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan CallbackResult {
	return h.results
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>spotify-nvim</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .container { text-align: center; background: #181818; padding: 2rem; border-radius: 8px; }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Authorized</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
