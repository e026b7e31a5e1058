package bridge

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/neovim/go-client/msgpack"
)

// decodeConfig round-trips v through msgpack the way the RPC reader delivers it.
func decodeConfig(t *testing.T, v any) ConfigArgs {
	t.Helper()

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var args ConfigArgs
	if err := msgpack.NewDecoder(&buf).Decode(&args); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	t.Cleanup(func() { received.done(args.applied) })
	return args
}

func TestConfigArgs(t *testing.T) {
	t.Run("decodes string keys and registers the notification", func(t *testing.T) {
		before := received.size()

		args := decodeConfig(t, map[string]any{
			"client_id":       "id",
			"client_secret":   "secret",
			"token_file_path": "/tmp/tokens",
		})

		if args.Fields["client_id"] != "id" || args.Fields["token_file_path"] != "/tmp/tokens" {
			t.Errorf("unexpected fields: %v", args.Fields)
		}
		if got := received.size(); got != before+1 {
			t.Errorf("expected %d pending, got %d", before+1, got)
		}

		received.done(args.applied)
		if got := received.size(); got != before {
			t.Errorf("expected %d pending after apply, got %d", before, got)
		}
	})

	t.Run("keeps non-string values", func(t *testing.T) {
		args := decodeConfig(t, map[string]any{"client_id": int64(7)})

		if _, ok := args.Fields["client_id"]; !ok {
			t.Errorf("expected client_id to be present, got %v", args.Fields)
		}
	})

	t.Run("non-map payload decodes to empty fields", func(t *testing.T) {
		args := decodeConfig(t, "oops")

		if args.Fields != nil {
			t.Errorf("expected nil fields, got %v", args.Fields)
		}
		if args.applied == nil {
			t.Error("a malformed config should still be sequenced")
		}
	})
}

func TestPending(t *testing.T) {
	t.Run("wait returns once earlier notifications are applied", func(t *testing.T) {
		var p pending
		first := p.add()

		waited := make(chan error, 1)
		go func() { waited <- p.wait(context.Background()) }()

		second := p.add()
		p.done(first)
		p.done(second)

		select {
		case err := <-waited:
			if err != nil {
				t.Errorf("wait() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("wait did not return")
		}
	})

	t.Run("done is idempotent", func(t *testing.T) {
		var p pending
		ch := p.add()

		p.done(ch)
		p.done(ch)
		p.done(nil)

		if got := p.size(); got != 0 {
			t.Errorf("expected nothing pending, got %d", got)
		}
	})

	t.Run("doneAll releases waiters", func(t *testing.T) {
		var p pending
		p.add()
		p.add()

		p.doneAll()

		if err := p.wait(context.Background()); err != nil {
			t.Errorf("wait() error = %v", err)
		}
	})

	t.Run("wait honours cancellation", func(t *testing.T) {
		var p pending
		p.add()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := p.wait(ctx); err == nil {
			t.Error("expected an error from a cancelled wait")
		}
	})
}
