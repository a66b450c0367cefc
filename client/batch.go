package client

import (
	"context"
	"errors"
	"sync"

	"luci-rpc/protocol"
)

// ErrBatchSent is returned for calls added to a batch after Send.
var ErrBatchSent = errors.New("batch already sent")

// Batch groups calls into a single round trip. The request path joins every
// "object.method" with ';' and the body is the array of envelopes; replies
// are matched by position and each call settles on its own.
type Batch struct {
	client *Client

	mu    sync.Mutex
	calls []*pending
	sent  bool
}

// NewBatch starts an empty batch on c.
func (c *Client) NewBatch() *Batch {
	return &Batch{client: c}
}

// Len returns the number of queued calls.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *Batch) add(p *pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent {
		p.settle(protocol.Value{}, ErrBatchSent)
		return
	}
	b.calls = append(b.calls, p)
}

// Send performs the round trip and settles every queued call. An empty
// batch returns at once without touching the transport. The returned error
// is the transport failure shared by all calls, if any; per-call outcomes
// are read from their futures.
func (b *Batch) Send(ctx context.Context) error {
	b.mu.Lock()
	if b.sent {
		b.mu.Unlock()
		return ErrBatchSent
	}
	b.sent = true
	calls := b.calls
	b.mu.Unlock()

	return b.client.dispatch(ctx, calls, true)
}
