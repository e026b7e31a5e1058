package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotify-nvim/internal/shared"
)

// Callback answers the authorization prompt by catching the browser redirect on a loopback
// address instead of asking the user to paste it.
type Callback struct {
	// Addr is the host:port to listen on. Ignored when Listener is set.
	Addr string
	// Path is the redirect path. Defaults to /callback.
	Path string
	// Listener, when set, is used instead of listening on Addr.
	Listener net.Listener
	// Open is called with the authorization URL, usually to launch a browser. Optional.
	Open func(url string) error
	// Out receives the instructions shown to the user. Defaults to io.Discard.
	Out    io.Writer
	Logger *log.Logger
}

// Prompt serves one redirect and returns its full URL. message must contain the
// authorization URL, whose state parameter the redirect has to echo.
func (c *Callback) Prompt(ctx context.Context, message string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	out := c.Out
	if out == nil {
		out = io.Discard
	}

	authURL, state, err := AuthURLFromPrompt(message)
	if err != nil {
		return "", err
	}

	ln := c.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", c.Addr); err != nil {
			return "", fmt.Errorf("listening on %s: %w", c.Addr, err)
		}
	}

	h := NewOAuthHandler(c.Path, state, "http://"+ln.Addr().String())
	router := NewRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handle(h)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("waiting for oauth callback", "addr", ln.Addr().String())
	fmt.Fprintf(out, "Open this URL to authorize spotify-nvim:\n\n  %s\n\n", authURL)
	if c.Open != nil {
		if err := c.Open(authURL); err != nil {
			logger.Warn("could not open browser", "error", err)
		}
	}

	select {
	case res := <-h.Result():
		if res.Err != nil {
			return "", res.Err
		}
		return res.RedirectURL, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AuthURLFromPrompt finds the first http(s) URL in message and returns it with its state
// parameter.
func AuthURLFromPrompt(message string) (string, string, error) {
	for _, field := range strings.Fields(message) {
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			continue
		}
		u, err := url.Parse(field)
		if err != nil {
			return "", "", fmt.Errorf("%w: bad authorization url: %v", shared.ErrOAuthExchange, err)
		}
		return field, u.Query().Get("state"), nil
	}
	return "", "", fmt.Errorf("%w: no authorization url in prompt", shared.ErrOAuthExchange)
}
