package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("bridge")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Envelope is one queued command
type Envelope struct {
	ID       uint64
	Text     string
	Command  device.Command
	Enqueued time.Time
}

// Pending is the waiting side of a queued command. Its result is published at most
// once and can be taken exactly once.
type Pending struct {
	ID   uint64
	Text string

	done   chan struct{}
	result device.Result
	ok     bool
	taken  atomic.Bool
}

// Done is closed once the result was published or the bridge was closed
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the published result. ok is false before Done is closed, if the
// bridge was closed without a result, or if the result was already taken.
func (p *Pending) Result() (device.Result, bool) {
	select {
	case <-p.done:
	default:
		return device.Result{}, false
	}
	if !p.ok || !p.taken.CompareAndSwap(false, true) {
		return device.Result{}, false
	}
	return p.result, true
}

// Options configures a Bridge
type Options struct {
	// Timeout is the wait limit of Call (0 = wait until the context is done)
	Timeout time.Duration
}

// --------------------------------------------------------------------------
// Bridge
// --------------------------------------------------------------------------

// Bridge connects any number of command producers with the single executor.
//
// Producers Enqueue commands and wait on the returned Pending. The executor reads
// envelopes from Recv and Publishes one result per correlation id. Results for
// abandoned ids are dropped.
type Bridge struct {
	queue   *Queue[Envelope]
	pending *xsync.MapOf[uint64, *Pending]
	seq     atomic.Uint64
	closed  atomic.Bool
	timeout time.Duration

	mu        sync.RWMutex
	listeners []chan<- struct{}
}

// New creates a bridge
func New(opts Options) *Bridge {
	return &Bridge{
		queue:   NewQueue[Envelope](),
		pending: xsync.NewMapOf[uint64, *Pending](),
		timeout: opts.Timeout,
	}
}

// Enqueue queues a command using its canonical text
func (b *Bridge) Enqueue(cmd device.Command) (*Pending, error) {
	return b.EnqueueText(cmd.String(), cmd)
}

// EnqueueText queues a command and reports text as the command of its result
func (b *Bridge) EnqueueText(text string, cmd device.Command) (*Pending, error) {
	if b.closed.Load() {
		return nil, device.ErrClosed
	}

	id := b.seq.Add(1)
	p := &Pending{ID: id, Text: text, done: make(chan struct{})}
	b.pending.Store(id, p)

	if !b.queue.Push(&Envelope{ID: id, Text: text, Command: cmd, Enqueued: time.Now()}) {
		b.pending.Delete(id)
		return nil, device.ErrClosed
	}

	// Close may have swept the table before the slot was stored
	if b.closed.Load() {
		b.release(id)
	}

	log.Debugf("enqueued #%d %s", id, text)
	return p, nil
}

// Recv returns the channel the executor reads envelopes from
func (b *Bridge) Recv() <-chan *Envelope {
	return b.queue.Recv()
}

// Publish stores the result for id and wakes all listeners. It returns false if
// nobody waits for id anymore (abandoned, already published or bridge closed).
func (b *Bridge) Publish(id uint64, r device.Result) bool {
	p, ok := b.pending.LoadAndDelete(id)
	if !ok {
		log.Debugf("dropped result of #%d %s, no waiter", id, r.Command)
		return false
	}
	p.result = r
	p.ok = true
	close(p.done)

	b.notify()
	return true
}

// Abandon removes the waiter of id, a later result is dropped
func (b *Bridge) Abandon(id uint64) {
	b.pending.Delete(id)
}

// Notify registers a channel that receives a (non blocking) signal whenever a
// result was published. A buffered channel of size one is recommended.
func (b *Bridge) Notify(ch chan<- struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, ch)
}

// Len returns the number of commands waiting for the executor
func (b *Bridge) Len() int {
	return b.queue.Len()
}

// Waiting returns the number of registered waiters
func (b *Bridge) Waiting() int {
	return b.pending.Size()
}

// Close stops the bridge. Queued commands are discarded and all waiters are
// released without a result.
func (b *Bridge) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.queue.Close()

	b.pending.Range(func(id uint64, _ *Pending) bool {
		b.release(id)
		return true
	})
	b.notify()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see call.ICaller)
// --------------------------------------------------------------------------

// Call queues cmd and blocks until its result is published, the bridge timeout
// passes or ctx is done. On timeout the synthesized timeout result is returned
// together with device.ErrTimeout.
func (b *Bridge) Call(ctx context.Context, cmd device.Command) (device.Result, error) {
	return b.CallTimeout(ctx, cmd, b.timeout)
}

// CallTimeout is like Call with an explicit timeout (0 = no timeout)
func (b *Bridge) CallTimeout(ctx context.Context, cmd device.Command, timeout time.Duration) (device.Result, error) {
	if err := ctx.Err(); err != nil {
		return device.Result{}, err
	}
	p, err := b.Enqueue(cmd)
	if err != nil {
		return device.Result{}, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-p.Done():
		r, ok := p.Result()
		if !ok {
			return device.Result{}, device.ErrClosed
		}
		return r, nil
	case <-expired:
		b.Abandon(p.ID)
		return device.NewTimeoutResult(time.Now(), p.Text, timeout), fmt.Errorf("%w: %s after %s", device.ErrTimeout, p.Text, timeout)
	case <-ctx.Done():
		b.Abandon(p.ID)
		return device.Result{}, ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// release closes the waiter of id without a result
func (b *Bridge) release(id uint64) {
	if p, ok := b.pending.LoadAndDelete(id); ok {
		close(p.done)
	}
}

func (b *Bridge) notify() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
