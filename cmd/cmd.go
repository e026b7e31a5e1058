// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.2.0"

// rootCommand serves RPC when run without a subcommand, which is how the editor starts it.
func rootCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotify-nvim",
		Usage:    "Control Spotify from Neovim",
		Version:  version,
		Flags:    globalFlags(),
		Before:   r.Setup,
		After:    r.Teardown,
		Action:   r.Serve,
		Commands: r.register(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   shared.DefaultConfigPath(),
			Sources: cli.EnvVars("SPOTIFY_NVIM_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error); overrides [log] level",
			Sources: cli.EnvVars("SPOTIFY_NVIM_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "Append logs to this file instead of stderr; overrides [log] file",
			Sources: cli.EnvVars("SPOTIFY_NVIM_LOG_FILE"),
		},
	}
}

// serveCommand runs the MessagePack-RPC host on stdio
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve editor RPC requests on stdin/stdout",
		Action: r.Serve,
	}
}

// loginCommand authorizes from a terminal and caches the token
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authorize with Spotify and cache the token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Catch the redirect on the loopback callback server instead of pasting it",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "With --listen, print the authorization URL without opening a browser",
			},
			&cli.StringFlag{
				Name:    "client-id",
				Usage:   "Spotify client ID; overrides the config file",
				Sources: cli.EnvVars("SPOTIFY_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:    "client-secret",
				Usage:   "Spotify client secret; overrides the config file",
				Sources: cli.EnvVars("SPOTIFY_CLIENT_SECRET"),
			},
			&cli.StringFlag{
				Name:  "token-file",
				Usage: "Where to cache the token; overrides [session] token_file_path",
			},
		},
		Action: r.Login,
	}
}

// statusCommand reports on the cached token
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the token file location and whether the cached token is usable",
		Action: r.Status,
	}
}

// initCommand writes the example configuration
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write an example config file to the config path",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: r.Init,
	}
}
