package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ValentinKolb/dFlux/lib/fault"
	"github.com/ValentinKolb/dFlux/lib/getter"
	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/ValentinKolb/dFlux/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("dispatcher")

// ErrClosed is returned for requests made after Close
var ErrClosed = errors.New("dispatcher is closed")

// request is one unit of work applied on the dispatcher goroutine. done is
// nil for fire-and-forget requests.
type request struct {
	name string
	fn   func(r *reactor.Reactor) error
	done chan error
}

// Dispatcher applies requests from many goroutines to one reactor
type Dispatcher struct {
	reactor *reactor.Reactor
	queue   *util.Queue[request]
	stopped chan struct{}
	failed  atomic.Uint64
}

// New starts a dispatcher owning r. r must not be used directly afterwards.
func New(r *reactor.Reactor) *Dispatcher {
	d := &Dispatcher{
		reactor: r,
		queue:   util.NewQueue[request](),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for req := range d.queue.Recv() {
		err := d.apply(req)
		if req.done != nil {
			req.done <- err
		} else if err != nil {
			d.failed.Add(1)
			log.Warningf("%s failed: %v", req.name, err)
		}
	}
}

// apply runs one request, turning a panic into an error so that the loop survives
func (d *Dispatcher) apply(req request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fault.Newf(fault.CodeInvariant, "%s panicked: %v", req.name, r)
		}
	}()
	return req.fn(d.reactor)
}

// Do runs fn on the dispatcher goroutine and waits for its result. When
// ctx is done first, Do returns ctx.Err(); fn still runs.
func (d *Dispatcher) Do(ctx context.Context, fn func(r *reactor.Reactor) error) error {
	return d.do(ctx, "do", fn)
}

func (d *Dispatcher) do(ctx context.Context, name string, fn func(r *reactor.Reactor) error) error {
	done := make(chan error, 1)
	if !d.queue.Push(request{name: name, fn: fn, done: done}) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch applies an action and waits until the observers were notified
func (d *Dispatcher) Dispatch(ctx context.Context, actionType string, payload any) error {
	return d.do(ctx, "dispatch "+actionType, func(r *reactor.Reactor) error {
		return r.Dispatch(actionType, payload)
	})
}

// Post enqueues an action without waiting. Failures are logged and counted
// (see Failed). Post returns false if the dispatcher is closed.
func (d *Dispatcher) Post(actionType string, payload any) bool {
	return d.queue.Push(request{
		name: "dispatch " + actionType,
		fn: func(r *reactor.Reactor) error {
			return r.Dispatch(actionType, payload)
		},
	})
}

// Batch runs fn inside reactor.Batch on the dispatcher goroutine
func (d *Dispatcher) Batch(ctx context.Context, fn func(r *reactor.Reactor) error) error {
	return d.do(ctx, "batch", func(r *reactor.Reactor) error {
		return r.Batch(func() error { return fn(r) })
	})
}

// Evaluate resolves dep against the current state
func (d *Dispatcher) Evaluate(ctx context.Context, dep getter.Dependency) (any, error) {
	var value any
	err := d.do(ctx, "evaluate", func(r *reactor.Reactor) error {
		v, err := r.Evaluate(dep)
		value = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Observe registers handler for changes of dep. The handler runs on the
// dispatcher goroutine. The returned function removes the observer; it may
// be called from any goroutine. If ctx is done before the observer was
// registered, no observer stays registered.
func (d *Dispatcher) Observe(ctx context.Context, dep getter.Dependency, handler func(value any)) (func(), error) {
	var unwatch func()
	err := d.do(ctx, "observe", func(r *reactor.Reactor) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := r.Observe(dep, handler)
		unwatch = u
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			// the request may have run after do gave up; requests from one
			// goroutine are applied in order, so this one runs after it
			d.queue.Push(request{name: "unwatch", fn: func(*reactor.Reactor) error {
				if unwatch != nil {
					unwatch()
				}
				return nil
			}})
		}
		return nil, err
	}

	return func() {
		d.queue.Push(request{name: "unwatch", fn: func(*reactor.Reactor) error {
			unwatch()
			return nil
		}})
	}, nil
}

// Failed returns the number of posted actions that failed
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

// Close stops accepting requests, applies the queued ones and waits for the
// dispatcher goroutine to exit
func (d *Dispatcher) Close() {
	d.queue.Close()
	<-d.stopped
}
