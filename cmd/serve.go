package main

import (
	"context"

	"github.com/desertthunder/spotify-nvim/internal/bridge"
	"github.com/urfave/cli/v3"
)

// Serve runs the editor RPC host on stdio until the editor closes the channel.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("starting rpc host", "version", version, "token_file", r.holder.TokenFilePath())

	return bridge.Serve(ctx, bridge.ServeOptions{
		In:      r.rpcIn,
		Out:     r.rpcOut,
		Holder:  r.holder,
		Manager: r.manager,
		Logger:  r.logger,
	})
}
