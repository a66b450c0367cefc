package client

import (
	"context"
	"fmt"

	"luci-rpc/message"
	"luci-rpc/protocol"
)

// Procedure describes one remote object/method pair.
//
// Params names the positional arguments of an invocation, in order; they are
// sent as the named-argument object. Arguments beyond len(Params) are never
// sent and are handed to the filter instead.
type Procedure[T any] struct {
	Object string
	Method string
	Params []string
	Expect *Expect[T]
}

// Filter post-processes a projected result. args are the named arguments
// that were sent; extra are the surplus positional arguments.
type Filter[T, R any] func(value T, args message.Args, extra ...any) (R, error)

// Declared is a callable remote procedure producing R.
type Declared[T, R any] struct {
	client *Client
	proc   Procedure[T]
	filter Filter[T, R]
}

// Declare binds a procedure to c. Its results are returned as projected.
func Declare[T any](c *Client, p Procedure[T]) *Declared[T, T] {
	return &Declared[T, T]{client: c, proc: p}
}

// DeclareFiltered binds a procedure whose projected result is passed
// through filter.
func DeclareFiltered[T, R any](c *Client, p Procedure[T], filter Filter[T, R]) *Declared[T, R] {
	if filter == nil {
		panic(fmt.Sprintf("client: nil filter for %s.%s", p.Object, p.Method))
	}
	return &Declared[T, R]{client: c, proc: p, filter: filter}
}

// Call invokes the procedure and waits for its result.
func (d *Declared[T, R]) Call(ctx context.Context, args ...any) (R, error) {
	return d.Go(ctx, args...).Await(ctx)
}

// Go invokes the procedure without waiting. The envelope, and with it the
// id and session, is built before Go returns.
func (d *Declared[T, R]) Go(ctx context.Context, args ...any) *Future[R] {
	p, fut := d.prepare(d.client, args)
	if p != nil {
		go d.client.dispatch(ctx, []*pending{p}, false)
	}
	return fut
}

// Add queues an invocation on b. It is sent with b.Send.
func (d *Declared[T, R]) Add(b *Batch, args ...any) *Future[R] {
	p, fut := d.prepare(b.client, args)
	if p != nil {
		b.add(p)
	}
	return fut
}

// prepare splits args, builds the envelope on c and wires its settlement to
// a new future. On failure the future is already rejected and p is nil.
func (d *Declared[T, R]) prepare(c *Client, args []any) (*pending, *Future[R]) {
	fut := newFuture[R]()

	named := message.Args{}
	n := 0
	for ; n < len(d.proc.Params) && n < len(args); n++ {
		named[d.proc.Params[n]] = args[n]
	}
	var extra []any
	if n < len(args) {
		extra = append(extra, args[n:]...)
	}

	req, err := c.newCall(d.proc.Object, d.proc.Method, named)
	if err != nil {
		var zero R
		fut.settle(zero, err)
		return nil, fut
	}

	c.logger.Debug().
		Uint64("id", req.ID).
		Str("object", d.proc.Object).
		Str("method", d.proc.Method).
		Msg("ubus call")

	return &pending{
		req: req,
		settle: func(v protocol.Value, err error) {
			if err != nil {
				var zero R
				fut.settle(zero, err)
				return
			}
			fut.settle(d.finish(c, req, v, named, extra))
		},
	}, fut
}

// finish projects and filters a decoded reply value.
func (d *Declared[T, R]) finish(c *Client, req *message.Request, v protocol.Value, named message.Args, extra []any) (R, error) {
	var zero R

	if !v.Present && v.Status != protocol.StatusOK {
		c.logger.Debug().
			Uint64("id", req.ID).
			Str("path", req.Path()).
			Int("status", int(v.Status)).
			Str("reason", v.Status.String()).
			Msg("ubus call returned no data")
	}

	var value T
	if d.proc.Expect != nil {
		proj := project(c.codec, v, d.proc.Expect)
		if proj.Defaulted {
			c.logger.Debug().Uint64("id", req.ID).Str("path", req.Path()).Msg("using default result")
		}
		value = proj.Value
	} else if v.Present {
		if err := c.codec.Decode(v.Raw, &value); err != nil {
			return zero, fmt.Errorf("decoding %s result: %w", req.Path(), err)
		}
	}

	if d.filter == nil {
		// Declare is the only way to get here, so R is T.
		out, _ := any(value).(R)
		return out, nil
	}

	out, err := d.filter(value, named, extra...)
	if err != nil {
		return zero, fmt.Errorf("filtering %s result: %w", req.Path(), err)
	}
	return out, nil
}
