// Package bridge routes editor commands to the Spotify session.
//
// A [Dispatcher] owns no transport: it talks to the editor through a [Host] and can be driven
// directly from tests. The Neovim binding lives in nvim.go.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/services"
	"github.com/desertthunder/spotify-nvim/internal/session"
	"github.com/desertthunder/spotify-nvim/internal/shared"
)

const (
	searchPageSize = 50
	msgInitialized = "Initialized spotify!"
	msgMissingConf = "client_id and/or client_secret not passed to config"
)

// Host is the editor side of the bridge.
type Host interface {
	// Out writes a message to the editor's output area.
	Out(msg string)
	// Err writes a message to the editor's error channel.
	Err(msg string)
	// Input asks the user for a line of text.
	Input(ctx context.Context, prompt string) (string, error)
}

// TrackRecord is one search hit as returned to the editor.
type TrackRecord struct {
	Name string `msgpack:"name" json:"name"`
	URI  string `msgpack:"uri" json:"uri"`
}

// Dispatcher executes editor commands against the session.
type Dispatcher struct {
	holder  *credentials.Holder
	manager *session.Manager
	host    Host
	logger  *log.Logger
}

// New creates a dispatcher.
func New(holder *credentials.Holder, manager *session.Manager, host Host, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dispatcher{
		holder:  holder,
		manager: manager,
		host:    host,
		logger:  shared.WithLogger(logger, "component", "dispatcher"),
	}
}

// Configure stores client credentials and an optional token file path.
//
// Values that are not strings are treated as absent.
func (d *Dispatcher) Configure(ctx context.Context, fields map[string]any) error {
	logger := d.commandLogger("config")

	id, _ := stringField(fields, "client_id")
	secret, _ := stringField(fields, "client_secret")
	path, _ := stringField(fields, "token_file_path")

	if err := d.holder.Configure(credentials.Credentials{ClientID: id, ClientSecret: secret}, path); err != nil {
		logger.Error("rejected configuration", "error", err)
		d.err(msgMissingConf)
		return err
	}

	logger.Info("configured credentials", "token_file", d.holder.TokenFilePath())
	return nil
}

// PlayTrack starts playback of the given track URIs.
func (d *Dispatcher) PlayTrack(ctx context.Context, uris ...string) error {
	logger := d.commandLogger("play_track")

	if len(uris) == 0 {
		err := fmt.Errorf("%w: no track uri given", shared.ErrInvalidArgument)
		logger.Error("play_track failed", "error", err)
		d.err(err.Error())
		return err
	}

	player, err := d.ensureReady(ctx, logger)
	if err != nil {
		d.reportAll(err)
		return err
	}

	if err := player.StartPlayback(ctx, uris); err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrAPIAction, err)
		logger.Error("start playback failed", "uris", uris, "error", err)
		d.err(fmt.Sprintf("Error starting playback: %v", err))
		return err
	}

	logger.Info("started playback", "uris", uris)
	return nil
}

// NextTrack skips to the next track. The returned error is informational: the editor
// always gets an empty reply and sees failures on its error channel.
func (d *Dispatcher) NextTrack(ctx context.Context) error {
	return d.skip(ctx, "next_track", "next", func(p services.Player) error { return p.NextTrack(ctx) })
}

// PreviousTrack skips to the previous track, with the same reply contract as [Dispatcher.NextTrack].
func (d *Dispatcher) PreviousTrack(ctx context.Context) error {
	return d.skip(ctx, "previous_track", "previous", func(p services.Player) error { return p.PreviousTrack(ctx) })
}

func (d *Dispatcher) skip(ctx context.Context, name, direction string, action func(services.Player) error) error {
	logger := d.commandLogger(name)

	player, err := d.ensureReady(ctx, logger)
	if err != nil {
		d.reportAll(err)
		return err
	}

	if err := action(player); err != nil {
		err = fmt.Errorf("%w: %w", shared.ErrAPIAction, err)
		logger.Error("skip failed", "direction", direction, "error", err)
		d.err(fmt.Sprintf("Error going to %s track: %v", direction, err))
		return err
	}

	logger.Debug("skipped track", "direction", direction)
	return nil
}

// SearchTracks searches the catalog for tracks matching the artist and track filters.
// Other keys are ignored and an empty filter map searches with an empty query.
func (d *Dispatcher) SearchTracks(ctx context.Context, filters map[string]any) ([]TrackRecord, error) {
	logger := d.commandLogger("search_tracks")

	player, err := d.ensureReady(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSessionUnavailable, err)
	}

	query := SearchQuery(filters)
	result, err := player.Search(ctx, query, services.SearchTrack, searchPageSize, 0)
	if err != nil {
		logger.Error("search failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIAction, err)
	}
	if result == nil || result.Tracks == nil {
		logger.Error("search returned no track page", "query", query)
		return nil, fmt.Errorf("%w: expected a page of tracks", shared.ErrUnexpectedResultShape)
	}

	records := make([]TrackRecord, 0, len(result.Tracks.Items))
	for _, t := range result.Tracks.Items {
		records = append(records, TrackRecord{Name: t.Name, URI: t.URI})
	}

	logger.Debug("search finished", "query", query, "results", len(records))
	return records, nil
}

// SearchQuery builds a Spotify field-filter query, artist first then track, each term
// followed by a single space.
func SearchQuery(filters map[string]any) string {
	var b strings.Builder
	for _, key := range []string{"artist", "track"} {
		if v, ok := stringField(filters, key); ok {
			fmt.Fprintf(&b, "%s:%s ", key, v)
		}
	}
	return b.String()
}

// ensureReady initializes the session if needed and reports the outcome to the host.
func (d *Dispatcher) ensureReady(ctx context.Context, logger *log.Logger) (services.Player, error) {
	ready, err := d.manager.EnsureReady(ctx, d.host.Input)
	if err != nil {
		logger.Error("session initialization failed", "error", err)
		return nil, err
	}

	for _, w := range ready.Warnings {
		logger.Warn("session warning", "warning", w)
		d.err(w.Error())
	}
	if ready.Source != session.SourceCache {
		logger.Info("session initialized", "source", ready.Source)
		d.out(msgInitialized)
	}
	return ready.Session, nil
}

// reportAll writes each line of err as its own message, so joined errors read one per line.
func (d *Dispatcher) reportAll(err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		d.err(line)
	}
}

func (d *Dispatcher) commandLogger(name string) *log.Logger {
	return shared.WithLogger(d.logger, "cmd", name, "id", shared.GenerateID())
}

func (d *Dispatcher) out(msg string) { d.host.Out(shared.MessagePrefix + msg) }

func (d *Dispatcher) err(msg string) { d.host.Err(shared.MessagePrefix + msg) }

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
