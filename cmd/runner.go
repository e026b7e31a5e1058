package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/services"
	"github.com/desertthunder/spotify-nvim/internal/session"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/tokenstore"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	rpcIn      io.Reader
	rpcOut     io.WriteCloser
	store      tokenstore.Store
	httpClient *http.Client
	openURL    func(string) error

	holder  *credentials.Holder
	manager *session.Manager
	closers []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	// Output receives human-readable command output. Defaults to stdout.
	Output io.Writer
	// Input is read for pasted redirect URLs. Defaults to stdin.
	Input io.Reader
	// RPCIn and RPCOut carry the editor's MessagePack-RPC stream. Default to stdin and stdout.
	RPCIn      io.Reader
	RPCOut     io.WriteCloser
	Store      tokenstore.Store
	HTTPClient *http.Client
	// OpenURL launches a browser. Defaults to [shared.OpenBrowser].
	OpenURL func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.RPCIn == nil {
		opts.RPCIn = os.Stdin
	}
	if opts.RPCOut == nil {
		opts.RPCOut = os.Stdout
	}
	if opts.Store == nil {
		opts.Store = tokenstore.FileStore{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}

	r := &Runner{
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		rpcIn:      opts.RPCIn,
		rpcOut:     opts.RPCOut,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		openURL:    opts.OpenURL,
	}
	r.apply(opts.Config)
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, loginCommand, statusCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// apply rebuilds the credential holder and session manager from config.
//
// Credentials in the config file pre-seed the holder; a later config command from the editor
// replaces them.
func (r *Runner) apply(config *shared.Config) {
	r.config = config
	r.holder = credentials.NewHolder(config.TokenFilePath())

	spotify := config.Credentials.Spotify
	if spotify.HasCredentials() {
		creds := credentials.Credentials{ClientID: spotify.ClientID, ClientSecret: spotify.ClientSecret}
		if err := r.holder.Configure(creds, ""); err != nil {
			r.logger.Warn("ignoring credentials from config", "error", err)
		}
	}

	r.manager = session.NewManager(session.Options{
		Holder:       r.holder,
		Store:        r.store,
		NewExchanger: r.exchanger(spotify),
		Build: session.SpotifyBuilder(services.SpotifyOptions{
			BaseURL:    config.API.BaseURL,
			DeviceID:   spotify.DeviceID,
			RateLimit:  config.API.RateLimit,
			Burst:      config.API.Burst,
			HTTPClient: r.httpClient,
		}, spotify.RedirectURI, spotify.Scopes),
		Logger: r.logger,
	})
}

func (r *Runner) exchanger(spotify shared.SpotifyConfig) func(credentials.Credentials) session.Exchanger {
	return func(c credentials.Credentials) session.Exchanger {
		return services.NewSpotifyAuth(c.ClientID, c.ClientSecret, spotify.RedirectURI, spotify.Scopes).
			WithHTTPClient(r.httpClient)
	}
}

// Setup loads the config file named by --config and configures logging. It runs before every
// command.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = shared.ExpandPath(cmd.String("config"))

	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}

	logFile := config.Log.File
	if f := cmd.String("log-file"); f != "" {
		logFile = f
	}
	if logFile != "" {
		logger, f, err := shared.NewFileLogger(logFile)
		if err != nil {
			return ctx, err
		}
		r.logger = logger
		r.closers = append(r.closers, f)
	}

	level := config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	lvl, err := shared.ParseLogLevel(level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, lvl)

	r.apply(config)
	r.logger.Debug("loaded config", "path", r.configPath, "token_file", r.holder.TokenFilePath())
	return ctx, nil
}

// Teardown closes the log file, if any.
func (r *Runner) Teardown(ctx context.Context, cmd *cli.Command) error {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing %T: %w", c, err)
		}
	}
	r.closers = nil
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeLines(lines ...string) error {
	return r.writePlain("%s\n", strings.Join(lines, "\n"))
}
