package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/ui"
	"github.com/urfave/cli/v3"
)

// Init writes the embedded example config to the config path.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = shared.DefaultConfigPath()
	}

	if cmd.Bool("force") {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writeLines(
		ui.OK("Wrote %s", path),
		ui.Help("Set client_id and client_secret, then run `spotify-nvim login`."),
	)
}
