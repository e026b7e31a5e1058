package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/server"
	"github.com/desertthunder/spotify-nvim/internal/session"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/ui"
	"github.com/urfave/cli/v3"
)

// Login runs the same session initialization the editor triggers, from a terminal.
//
// A usable cached token short-circuits the flow. Otherwise the user either pastes the redirect
// URL or, with --listen, the loopback callback server catches it.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.overrideCredentials(cmd); err != nil {
		return err
	}

	prompt := session.Prompt(r.stdinPrompt)
	if cmd.Bool("listen") {
		cb := &server.Callback{
			Addr:   net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port)),
			Out:    r.output,
			Logger: r.logger,
		}
		if !cmd.Bool("no-browser") {
			cb.Open = r.openURL
		}
		prompt = cb.Prompt
	}

	ready, err := r.manager.EnsureReady(ctx, prompt)
	if err != nil {
		if errors.Is(err, shared.ErrNotConfigured) {
			r.writeLines(ui.Fail("no client credentials"),
				ui.Help("Set them in "+r.configPath+" or pass --client-id and --client-secret."))
		}
		return err
	}

	lines := []string{}
	for _, w := range ready.Warnings {
		lines = append(lines, ui.Warn("%v", w))
	}

	path := r.holder.TokenFilePath()
	switch ready.Source {
	case session.SourceOAuth:
		lines = append(lines, ui.OK("Authorization successful"))
		if !hasPersistWarning(ready.Warnings) {
			lines = append(lines, ui.OK("Token saved to %s", path))
		}
	default:
		lines = append(lines,
			ui.OK("Already authorized with the token in %s", path),
			ui.Help("Delete that file to authorize again."))
	}

	return r.writeLines(lines...)
}

// overrideCredentials applies --client-id, --client-secret and --token-file over the config.
func (r *Runner) overrideCredentials(cmd *cli.Command) error {
	id, secret, path := cmd.String("client-id"), cmd.String("client-secret"), cmd.String("token-file")
	if id == "" && secret == "" && path == "" {
		return nil
	}

	current := r.holder.Current()
	creds := credentials.Credentials{ClientID: id, ClientSecret: secret}
	if current.Credentials != nil {
		if creds.ClientID == "" {
			creds.ClientID = current.Credentials.ClientID
		}
		if creds.ClientSecret == "" {
			creds.ClientSecret = current.Credentials.ClientSecret
		}
	}

	if err := r.holder.Configure(creds, path); err != nil {
		return fmt.Errorf("%w: pass both --client-id and --client-secret or set them in the config", err)
	}
	return nil
}

// stdinPrompt shows message and reads one line from the runner's input.
func (r *Runner) stdinPrompt(ctx context.Context, message string) (string, error) {
	if err := r.writePlain("%s", message); err != nil {
		return "", err
	}

	line, err := bufio.NewReader(r.input).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("reading redirect URL: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func hasPersistWarning(warnings []error) bool {
	for _, w := range warnings {
		if errors.Is(w, shared.ErrPersist) {
			return true
		}
	}
	return false
}
