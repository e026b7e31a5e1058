package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/ui"
	"github.com/urfave/cli/v3"
)

// Status reports the config and token file state without contacting Spotify.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	lines := []string{ui.Title("spotify-nvim " + version)}

	configState := r.configPath
	if _, err := os.Stat(r.configPath); err != nil {
		configState += " (not found, using defaults)"
	}
	lines = append(lines, ui.Field("Config", configState))

	snap := r.holder.Current()
	if snap.Configured() {
		lines = append(lines, ui.Field("Credentials", "client "+snap.Credentials.ClientID))
	} else {
		lines = append(lines, ui.Field("Credentials", "not set (the editor must send config)"))
	}
	lines = append(lines, ui.Field("Token file", snap.TokenFilePath), "")

	rec, err := r.store.Load(snap.TokenFilePath)
	switch {
	case errors.Is(err, shared.ErrTokenNotFound):
		lines = append(lines, ui.Fail("No cached token"), ui.Help("Run `spotify-nvim login` to authorize."))
		return r.writeLines(lines...)
	case err != nil:
		lines = append(lines, ui.Fail("Cached token unusable: %v", err), ui.Help("Run `spotify-nvim login` to replace it."))
		return r.writeLines(lines...)
	}

	lines = append(lines, ui.OK("Token cached"))

	expiry := "unknown"
	if !rec.Expiry.IsZero() {
		expiry = rec.Expiry.Local().Format(time.RFC1123)
	}
	lines = append(lines, ui.Field("Expires", expiry))

	refresh := "no"
	if rec.RefreshToken != "" {
		refresh = "yes"
	}
	lines = append(lines, ui.Field("Refresh token", refresh))
	if rec.Scope != "" {
		lines = append(lines, ui.Field("Scope", rec.Scope))
	}

	if rec.Expired(time.Now()) {
		switch {
		case rec.RefreshToken == "":
			lines = append(lines, ui.Warn("Access token expired and cannot be refreshed; run `spotify-nvim login` after deleting the token file"))
		case snap.Configured():
			lines = append(lines, ui.Warn("Access token expired; it is refreshed on the next request"))
		default:
			lines = append(lines, ui.Warn("Access token expired; it can only be refreshed once client credentials are set"))
		}
	}

	return r.writeLines(lines...)
}
