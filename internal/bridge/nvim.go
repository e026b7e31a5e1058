package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotify-nvim/internal/credentials"
	"github.com/desertthunder/spotify-nvim/internal/session"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/neovim/go-client/msgpack"
	"github.com/neovim/go-client/nvim"
)

// RPC method names registered with the editor.
const (
	MethodConfig        = "config"
	MethodPlayTrack     = "play_track"
	MethodNextTrack     = "next_track"
	MethodPreviousTrack = "previous_track"
	MethodSearchTracks  = "search_tracks"
)

// Registrar is the subset of [nvim.Nvim] used to install handlers.
type Registrar interface {
	RegisterHandler(method string, fn any) error
}

// Handlers adapts a [Dispatcher] to MessagePack-RPC handler functions.
type Handlers struct {
	d      *Dispatcher
	ctx    context.Context
	logger *log.Logger

	wg sync.WaitGroup
}

// NewHandlers creates handlers that run every command with ctx.
func NewHandlers(ctx context.Context, d *Dispatcher, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Handlers{d: d, ctx: ctx, logger: logger}
}

// Register installs all handlers on r.
func (h *Handlers) Register(r Registrar) error {
	handlers := []struct {
		method string
		fn     any
	}{
		{MethodConfig, h.Config},
		{MethodPlayTrack, h.PlayTrack},
		{MethodNextTrack, h.NextTrack},
		{MethodPreviousTrack, h.PreviousTrack},
		{MethodSearchTracks, h.SearchTracks},
	}

	for _, hd := range handlers {
		if err := r.RegisterHandler(hd.method, hd.fn); err != nil {
			return fmt.Errorf("registering %s: %w", hd.method, err)
		}
	}
	return nil
}

// Config applies configuration before returning so later commands observe it.
func (h *Handlers) Config(args ConfigArgs) {
	defer received.done(args.applied)
	_ = h.d.Configure(h.ctx, args.Fields)
}

// PlayTrack starts playback on its own goroutine; a pending authorization prompt must not
// hold up the notifications queued behind it.
func (h *Handlers) PlayTrack(arg any) {
	uris, err := URIList(arg)
	if err != nil {
		h.logger.Error("play_track: bad argument", "error", err)
		h.d.err(err.Error())
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = h.d.PlayTrack(h.ctx, uris...)
	}()
}

// NextTrack always replies with nil; failures reach the editor's error channel.
func (h *Handlers) NextTrack() (any, error) {
	if h.settle() {
		_ = h.d.NextTrack(h.ctx)
	}
	return nil, nil
}

// PreviousTrack always replies with nil; failures reach the editor's error channel.
func (h *Handlers) PreviousTrack() (any, error) {
	if h.settle() {
		_ = h.d.PreviousTrack(h.ctx)
	}
	return nil, nil
}

// SearchTracks replies with the matching tracks or a prefixed error message.
func (h *Handlers) SearchTracks(filters map[string]any) ([]TrackRecord, error) {
	if err := received.wait(h.ctx); err != nil {
		return nil, fmt.Errorf("%s%w", shared.MessagePrefix, err)
	}
	records, err := h.d.SearchTracks(h.ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%s%w", shared.MessagePrefix, err)
	}
	return records, nil
}

// settle waits for config notifications read before the current request.
func (h *Handlers) settle() bool {
	if err := received.wait(h.ctx); err != nil {
		h.logger.Warn("request abandoned before pending config was applied", "error", err)
		return false
	}
	return true
}

// Wait blocks until every background playback command has finished.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

// URIList accepts a single URI string or a list of URI strings.
func URIList(arg any) ([]string, error) {
	switch v := arg.(type) {
	case string:
		if v == "" {
			break
		}
		return []string{v}, nil
	case []string:
		if len(v) == 0 {
			break
		}
		return v, nil
	case []any:
		if len(v) == 0 {
			break
		}
		uris := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: track uri %d is not a string", shared.ErrInvalidArgument, i)
			}
			uris = append(uris, s)
		}
		return uris, nil
	default:
		return nil, fmt.Errorf("%w: expected a track uri or a list of track uris, got %T", shared.ErrInvalidArgument, arg)
	}
	return nil, fmt.Errorf("%w: no track uri given", shared.ErrInvalidArgument)
}

// nvimHost writes to the editor through the RPC client.
type nvimHost struct {
	v      *nvim.Nvim
	logger *log.Logger
}

func (h *nvimHost) Out(msg string) {
	if err := h.v.WriteOut(msg + "\n"); err != nil {
		h.logger.Warn("failed to write editor output", "error", err)
	}
}

func (h *nvimHost) Err(msg string) {
	if err := h.v.WritelnErr(msg); err != nil {
		h.logger.Warn("failed to write editor error", "error", err)
	}
}

// Input calls the editor's input() function. It waits as long as the user takes.
func (h *nvimHost) Input(ctx context.Context, prompt string) (string, error) {
	var answer string
	if err := h.v.Call("input", &answer, prompt); err != nil {
		return "", fmt.Errorf("input(): %w", err)
	}
	return answer, nil
}

// ServeOptions configures [Serve].
type ServeOptions struct {
	In      io.Reader
	Out     io.WriteCloser
	Holder  *credentials.Holder
	Manager *session.Manager
	Logger  *log.Logger
}

// Serve runs the RPC host until the editor closes the channel or ctx is cancelled.
//
// A closed channel is a clean shutdown and returns nil. Any other transport failure is
// returned.
func Serve(ctx context.Context, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "rpc")

	v, err := nvim.New(opts.In, opts.Out, opts.Out, func(format string, args ...any) {
		logger.Debugf(format, args...)
	})
	if err != nil {
		return fmt.Errorf("creating rpc client: %w", err)
	}

	d := New(opts.Holder, opts.Manager, &nvimHost{v: v, logger: logger}, logger)
	h := NewHandlers(ctx, d, logger)
	if err := h.Register(v); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		logger.Info("shutting down rpc host")
		_ = v.Close()
	})
	defer stop()

	logger.Info("serving rpc on stdio")
	serveErr := v.Serve()

	received.doneAll()
	h.Wait()
	_ = v.Close()

	if ctx.Err() != nil || ChannelClosed(serveErr) {
		logger.Info("editor closed the channel")
		return nil
	}
	return fmt.Errorf("rpc transport: %w", serveErr)
}

// ChannelClosed reports whether err means the editor went away rather than a transport fault.
func ChannelClosed(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}
