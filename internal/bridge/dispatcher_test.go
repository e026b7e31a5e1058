package bridge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/services"
	"github.com/desertthunder/spotify-nvim/internal/session"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	tu "github.com/desertthunder/spotify-nvim/internal/testing"
	"github.com/desertthunder/spotify-nvim/internal/tokenstore"
	"golang.org/x/oauth2"
)

type harness struct {
	holder    *credentials.Holder
	store     *tu.MemoryStore
	exchanger *tu.MockExchanger
	player    *tu.MockPlayer
	host      *tu.MockHost
	manager   *session.Manager
	d         *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		holder:    credentials.NewHolder(filepath.Join(t.TempDir(), ".spotify_nvim_tokens")),
		store:     tu.NewMemoryStore(),
		exchanger: &tu.MockExchanger{Token: &oauth2.Token{AccessToken: "fresh", RefreshToken: "refresh"}},
		player:    &tu.MockPlayer{},
		host:      &tu.MockHost{},
	}

	logger := shared.NewLogger(nil)
	h.manager = session.NewManager(session.Options{
		Holder:       h.holder,
		Store:        h.store,
		NewExchanger: func(credentials.Credentials) session.Exchanger { return h.exchanger },
		Build: func(*credentials.Credentials, *oauth2.Token, func(*oauth2.Token)) (services.Player, error) {
			return h.player, nil
		},
		Logger: logger,
	})
	h.d = New(h.holder, h.manager, h.host, logger)
	return h
}

func (h *harness) seedToken() {
	h.store.Put(h.holder.TokenFilePath(), tokenstore.Record{AccessToken: "cached", RefreshToken: "r"})
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	err := h.d.Configure(context.Background(), map[string]any{"client_id": "id", "client_secret": "secret"})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
}

func assertPrefixed(t *testing.T, msgs []string) {
	t.Helper()
	for _, m := range msgs {
		if !strings.HasPrefix(m, shared.MessagePrefix) {
			t.Errorf("message %q is missing the %q prefix", m, shared.MessagePrefix)
		}
	}
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("Configure", func(t *testing.T) {
		t.Run("stores credentials and token path", func(t *testing.T) {
			h := newHarness(t)
			path := filepath.Join(t.TempDir(), "tokens.json")

			err := h.d.Configure(ctx, map[string]any{
				"client_id":       "id",
				"client_secret":   "secret",
				"token_file_path": path,
				"unknown":         true,
			})
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}

			snap := h.holder.Current()
			if !snap.Configured() || snap.Credentials.ClientID != "id" {
				t.Errorf("unexpected snapshot: %+v", snap)
			}
			if snap.TokenFilePath != path {
				t.Errorf("expected token path %q, got %q", path, snap.TokenFilePath)
			}
			if len(h.host.Errs()) != 0 {
				t.Errorf("expected no errors, got %v", h.host.Errs())
			}
		})

		tests := []struct {
			name   string
			fields map[string]any
		}{
			{"missing secret", map[string]any{"client_id": "id"}},
			{"missing id", map[string]any{"client_secret": "secret"}},
			{"empty id", map[string]any{"client_id": "", "client_secret": "secret"}},
			{"non-string secret", map[string]any{"client_id": "id", "client_secret": 42}},
			{"empty map", map[string]any{}},
			{"nil map", nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				before := h.holder.Current()

				err := h.d.Configure(ctx, tt.fields)
				if !errors.Is(err, shared.ErrMissingCredentials) {
					t.Fatalf("expected ErrMissingCredentials, got %v", err)
				}

				after := h.holder.Current()
				if after.Configured() || after.TokenFilePath != before.TokenFilePath {
					t.Errorf("holder should be unchanged, got %+v", after)
				}

				errs := h.host.Errs()
				if len(errs) != 1 || errs[0] != shared.MessagePrefix+msgMissingConf {
					t.Errorf("unexpected host errors: %v", errs)
				}
			})
		}

		t.Run("ignores non-string token path", func(t *testing.T) {
			h := newHarness(t)
			before := h.holder.TokenFilePath()

			err := h.d.Configure(ctx, map[string]any{"client_id": "id", "client_secret": "secret", "token_file_path": 7})
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if got := h.holder.TokenFilePath(); got != before {
				t.Errorf("expected token path %q, got %q", before, got)
			}
		})
	})

	t.Run("PlayTrack", func(t *testing.T) {
		t.Run("reports missing configuration without a token", func(t *testing.T) {
			h := newHarness(t)

			err := h.d.PlayTrack(ctx, "spotify:track:abc")
			if !errors.Is(err, shared.ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
			if h.manager.IsReady() {
				t.Error("session should stay uninitialized")
			}
			if len(h.player.Played) != 0 {
				t.Error("playback should not start")
			}

			tu.AssertContains(t, h.host.Errs(), "without client credentials")
			assertPrefixed(t, h.host.Errs())
		})

		t.Run("plays with cached token", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()

			if err := h.d.PlayTrack(ctx, "spotify:track:abc"); err != nil {
				t.Fatalf("PlayTrack() error = %v", err)
			}
			if len(h.player.Played) != 1 || h.player.Played[0][0] != "spotify:track:abc" {
				t.Errorf("unexpected playback calls: %v", h.player.Played)
			}

			outs := h.host.Outs()
			if len(outs) != 1 || outs[0] != shared.MessagePrefix+msgInitialized {
				t.Errorf("unexpected host output: %v", outs)
			}
		})

		t.Run("plays a list of tracks", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()

			if err := h.d.PlayTrack(ctx, "spotify:track:a", "spotify:track:b"); err != nil {
				t.Fatalf("PlayTrack() error = %v", err)
			}
			if got := h.player.Played[0]; len(got) != 2 || got[1] != "spotify:track:b" {
				t.Errorf("unexpected uris: %v", got)
			}
		})

		t.Run("runs oauth after configuration", func(t *testing.T) {
			h := newHarness(t)
			h.configure(t)
			h.host.Answer = tu.RedirectFor("abc")

			if err := h.d.PlayTrack(ctx, "spotify:track:abc"); err != nil {
				t.Fatalf("PlayTrack() error = %v", err)
			}

			prompts := h.host.Prompts()
			if len(prompts) != 1 || !strings.HasPrefix(prompts[0], "Go to https://accounts.test/authorize") {
				t.Errorf("unexpected prompts: %v", prompts)
			}
			if _, ok := h.store.Get(h.holder.TokenFilePath()); !ok {
				t.Error("token should be cached after authorization")
			}
			tu.AssertContains(t, h.host.Outs(), msgInitialized)
		})

		t.Run("reports action failure", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.PlayErr = &services.APIError{Status: 404, Message: "Player command failed: No active device found"}

			err := h.d.PlayTrack(ctx, "spotify:track:abc")
			if !errors.Is(err, shared.ErrAPIAction) {
				t.Fatalf("expected ErrAPIAction, got %v", err)
			}
			tu.AssertContains(t, h.host.Errs(), "No active device found")
		})

		t.Run("rejects empty uri list", func(t *testing.T) {
			h := newHarness(t)

			if err := h.d.PlayTrack(ctx); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if got := h.store.Loads.Load(); got != 0 {
				t.Errorf("session should not be touched, got %d loads", got)
			}
		})
	})

	t.Run("NextTrack", func(t *testing.T) {
		t.Run("uses cached token without oauth", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()

			if err := h.d.NextTrack(ctx); err != nil {
				t.Fatalf("NextTrack() error = %v", err)
			}
			if h.player.Nexts != 1 {
				t.Errorf("expected 1 skip, got %d", h.player.Nexts)
			}
			if len(h.host.Prompts()) != 0 {
				t.Error("no prompt expected with a cached token")
			}
			if len(h.exchanger.Codes) != 0 {
				t.Error("no exchange expected with a cached token")
			}
		})

		t.Run("prints initialized only once", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()

			for range 3 {
				if err := h.d.NextTrack(ctx); err != nil {
					t.Fatalf("NextTrack() error = %v", err)
				}
			}
			if got := len(h.host.Outs()); got != 1 {
				t.Errorf("expected 1 output message, got %d", got)
			}
		})

		t.Run("reports skip failure", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.NextErr = errors.New("restricted device")

			err := h.d.NextTrack(ctx)
			if !errors.Is(err, shared.ErrAPIAction) {
				t.Fatalf("expected ErrAPIAction, got %v", err)
			}
			tu.AssertContains(t, h.host.Errs(), "Error going to next track")

			h.player.NextErr = nil
			if err := h.d.NextTrack(ctx); err != nil {
				t.Errorf("a failed skip should not poison later commands, got %v", err)
			}
		})

		t.Run("surfaces token warnings", func(t *testing.T) {
			h := newHarness(t)
			h.configure(t)
			h.store.LoadErr = fmt.Errorf("%w: invalid character", shared.ErrDeserialize)
			h.host.Answer = tu.RedirectFor("abc")

			if err := h.d.NextTrack(ctx); err != nil {
				t.Fatalf("NextTrack() error = %v", err)
			}
			tu.AssertContains(t, h.host.Errs(), "invalid character")
			assertPrefixed(t, h.host.Errs())
		})

		t.Run("surfaces persist failure and stays ready", func(t *testing.T) {
			h := newHarness(t)
			h.configure(t)
			h.store.SaveErr = fmt.Errorf("%w: permission denied", shared.ErrIO)
			h.host.Answer = tu.RedirectFor("abc")

			if err := h.d.NextTrack(ctx); err != nil {
				t.Fatalf("NextTrack() error = %v", err)
			}
			tu.AssertContains(t, h.host.Errs(), "permission denied")
			if !h.manager.IsReady() {
				t.Error("session should be ready")
			}
		})
	})

	t.Run("PreviousTrack", func(t *testing.T) {
		h := newHarness(t)
		h.seedToken()

		if err := h.d.PreviousTrack(ctx); err != nil {
			t.Fatalf("PreviousTrack() error = %v", err)
		}
		if h.player.Previous != 1 {
			t.Errorf("expected 1 skip back, got %d", h.player.Previous)
		}

		h.player.PreviousErr = errors.New("nothing before")
		_ = h.d.PreviousTrack(ctx)
		tu.AssertContains(t, h.host.Errs(), "Error going to previous track")
	})

	t.Run("SearchTracks", func(t *testing.T) {
		t.Run("builds query and keeps order", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.Result = tu.TrackResult(
				"Song B", "spotify:track:b",
				"Song A", "spotify:track:a",
				"Song C", "spotify:track:c",
			)

			got, err := h.d.SearchTracks(ctx, map[string]any{"track": "Y", "artist": "X", "genre": "rock"})
			if err != nil {
				t.Fatalf("SearchTracks() error = %v", err)
			}

			call := h.player.Queries[0]
			if call.Query != "artist:X track:Y " {
				t.Errorf("expected query %q, got %q", "artist:X track:Y ", call.Query)
			}
			if call.Kind != services.SearchTrack || call.Limit != 50 || call.Offset != 0 {
				t.Errorf("unexpected search call: %+v", call)
			}

			want := []TrackRecord{
				{"Song B", "spotify:track:b"},
				{"Song A", "spotify:track:a"},
				{"Song C", "spotify:track:c"},
			}
			if len(got) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})

		t.Run("empty filters send empty query", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.Result = tu.TrackResult()

			got, err := h.d.SearchTracks(ctx, map[string]any{})
			if err != nil {
				t.Fatalf("SearchTracks() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected no records, got %v", got)
			}

			call := h.player.Queries[0]
			if call.Query != "" || call.Limit != 50 || call.Offset != 0 {
				t.Errorf("unexpected search call: %+v", call)
			}
		})

		t.Run("missing track page", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.Result = &services.SearchResult{}

			_, err := h.d.SearchTracks(ctx, map[string]any{"artist": "X"})
			if !errors.Is(err, shared.ErrUnexpectedResultShape) {
				t.Fatalf("expected ErrUnexpectedResultShape, got %v", err)
			}
		})

		t.Run("api failure", func(t *testing.T) {
			h := newHarness(t)
			h.seedToken()
			h.player.SearchErr = &services.APIError{Status: 401, Message: "The access token expired"}

			_, err := h.d.SearchTracks(ctx, nil)
			if !errors.Is(err, shared.ErrAPIAction) {
				t.Fatalf("expected ErrAPIAction, got %v", err)
			}
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected the 401 to stay visible, got %v", err)
			}
		})

		t.Run("session unavailable", func(t *testing.T) {
			h := newHarness(t)

			_, err := h.d.SearchTracks(ctx, map[string]any{"artist": "X"})
			if !errors.Is(err, shared.ErrSessionUnavailable) {
				t.Fatalf("expected ErrSessionUnavailable, got %v", err)
			}
			if !errors.Is(err, shared.ErrNotConfigured) {
				t.Errorf("expected the cause to be kept, got %v", err)
			}
			if len(h.player.Queries) != 0 {
				t.Error("search should not run without a session")
			}
		})
	})
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]any
		want    string
	}{
		{"artist and track", map[string]any{"artist": "X", "track": "Y"}, "artist:X track:Y "},
		{"track first in map", map[string]any{"track": "Y", "artist": "X"}, "artist:X track:Y "},
		{"artist only", map[string]any{"artist": "Daft Punk"}, "artist:Daft Punk "},
		{"track only", map[string]any{"track": "One More Time"}, "track:One More Time "},
		{"unknown keys ignored", map[string]any{"album": "Discovery"}, ""},
		{"non-string ignored", map[string]any{"artist": 12, "track": "Y"}, "track:Y "},
		{"empty", map[string]any{}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchQuery(tt.filters); got != tt.want {
				t.Errorf("SearchQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
