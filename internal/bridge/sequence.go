package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/neovim/go-client/msgpack"
)

// received tracks config notifications that the RPC reader has decoded but the notification
// goroutine has not applied yet.
//
// go-client queues notifications for a single goroutine but starts every request on its own
// goroutine as soon as it is read, so requests wait on this before touching the session.
var received pending

type pending struct {
	mu    sync.Mutex
	chans []chan struct{}
}

func (p *pending) add() chan struct{} {
	ch := make(chan struct{})

	p.mu.Lock()
	defer p.mu.Unlock()

	p.chans = append(p.chans, ch)
	return ch
}

// done marks one notification applied. Unknown or nil channels are ignored.
func (p *pending) done(ch chan struct{}) {
	if ch == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.chans {
		if c == ch {
			p.chans = append(p.chans[:i], p.chans[i+1:]...)
			close(ch)
			return
		}
	}
}

func (p *pending) doneAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.chans {
		close(ch)
	}
	p.chans = nil
}

// wait blocks until every notification registered before the call is applied.
func (p *pending) wait(ctx context.Context) error {
	p.mu.Lock()
	chans := append([]chan struct{}(nil), p.chans...)
	p.mu.Unlock()

	for _, ch := range chans {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *pending) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chans)
}

// ConfigArgs is the payload of the config notification.
//
// It decodes on the RPC reader goroutine in arrival order, which is where it registers itself
// in received.
type ConfigArgs struct {
	Fields map[string]any

	applied chan struct{}
}

// UnmarshalMsgPack implements msgpack.Unmarshaler. A payload that is not a map decodes to
// empty fields so the handler still reports the missing credentials.
func (c *ConfigArgs) UnmarshalMsgPack(dec *msgpack.Decoder) error {
	if dec.Type() == msgpack.MapLen {
		n := dec.Len()
		c.Fields = make(map[string]any, n)
		for range n {
			var key, value any
			if err := dec.Decode(&key); err != nil {
				return fmt.Errorf("config key: %w", err)
			}
			if err := dec.Decode(&value); err != nil {
				return fmt.Errorf("config value: %w", err)
			}
			switch k := key.(type) {
			case string:
				c.Fields[k] = value
			case []byte:
				c.Fields[string(k)] = value
			}
		}
	} else if err := dec.Skip(); err != nil {
		return err
	}

	c.applied = received.add()
	return nil
}
