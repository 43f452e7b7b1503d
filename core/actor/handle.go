package actor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/codewandler/mailroom/core/future"
	"github.com/codewandler/mailroom/core/processor"
)

// Handle refers to an actor by name. It resolves the live actor lazily and
// re-resolves once when the cached one turns out to be unregistered, so a
// Handle keeps working across unregister and re-register of the same name.
//
// The cached actor is swapped atomically, so a Handle may be shared between
// goroutines. The sender handle of an actor is used by every worker that
// replies to it.
type Handle struct {
	name   string
	actor  atomic.Pointer[actor]
	sys    *System
	sender *Handle
}

func (h *Handle) Name() string { return h.name }

// Tell sends msg without expecting a reply. If the actor was registered with
// a QueueLimit, Tell blocks while its queue is full.
func (h *Handle) Tell(msg any) error {
	return h.do(func(a *actor) error {
		return a.send(context.Background(), msg, h.sender, noHandler{sender: h.sender}, h.limitFor(a))
	})
}

// TellWithBackPressure blocks until fewer than limit messages are queued, then
// sends msg. It fails with ErrUnregisteredRecipient if the actor stops while
// the caller waits, and with ctx's error if ctx ends first.
func (h *Handle) TellWithBackPressure(ctx context.Context, msg any, limit int) error {
	if limit <= 0 {
		return processor.ErrInvalidThreshold
	}
	return h.do(func(a *actor) error {
		return a.send(ctx, msg, h.sender, noHandler{sender: h.sender}, limit)
	})
}

// Ask sends msg and arranges for rh to receive exactly one reply.
func (h *Handle) Ask(msg any, rh ReplyHandler) error {
	if rh == nil {
		return errors.New("ask requires a reply handler")
	}
	return h.ask(msg, newRoute(h.sender, rh))
}

// AskFuture sends msg and returns a future resolved by the first reply. If the
// receiving handler fails before replying, the future fails with that error.
// The future is completed on the replying actor's worker, so a handler may
// wait on it.
func (h *Handle) AskFuture(msg any) (*future.Future[any], error) {
	f := future.New[any]()
	if err := h.ask(msg, &futureRoute{f: f}); err != nil {
		return nil, err
	}
	return f, nil
}

func (h *Handle) ask(msg any, route replyRoute) error {
	return h.do(func(a *actor) error {
		return a.send(context.Background(), msg, h.sender, route, h.limitFor(a))
	})
}

// Exists reports whether a live actor is registered under this name.
func (h *Handle) Exists() bool {
	if a := h.actor.Load(); a != nil && a.registered.Load() {
		return true
	}
	if a := h.sys.lookup(h.name); a != nil {
		h.actor.Store(a)
		return a.registered.Load()
	}
	return false
}

// QueuedCount returns the number of queued messages and replies.
func (h *Handle) QueuedCount() int {
	if a := h.peek(); a != nil {
		return a.proc.Size()
	}
	return 0
}

func (h *Handle) ProcessedMessageCount() int64 {
	if a := h.peek(); a != nil {
		return a.messages.Load()
	}
	return 0
}

func (h *Handle) ProcessedReplyCount() int64 {
	if a := h.peek(); a != nil {
		return a.replies.Load()
	}
	return 0
}

func (h *Handle) String() string {
	a := h.peek()
	if a == nil {
		return fmt.Sprintf("actor(%s, unresolved)", h.name)
	}
	return fmt.Sprintf("actor(%s, registered=%t, queued=%d, messages=%d, replies=%d)",
		h.name, a.registered.Load(), a.proc.Size(), a.messages.Load(), a.replies.Load())
}

// peek returns the cached actor, even an unregistered one, so that counters
// stay readable after unregistering. It resolves only when nothing is cached.
func (h *Handle) peek() *actor {
	if a := h.actor.Load(); a != nil {
		return a
	}
	a := h.sys.lookup(h.name)
	if a != nil {
		h.actor.CompareAndSwap(nil, a)
	}
	return a
}

func (h *Handle) resolve() (*actor, error) {
	if a := h.peek(); a != nil {
		return a, nil
	}
	return nil, unregistered(h.name)
}

// do runs op against the resolved actor and retries once against a freshly
// registered one when the cached actor was unregistered. The stale actor stays
// cached when nothing replaced it.
func (h *Handle) do(op func(a *actor) error) error {
	a, err := h.resolve()
	if err != nil {
		return err
	}
	err = op(a)
	if !errors.Is(err, ErrUnregisteredRecipient) {
		return err
	}
	fresh := h.sys.lookup(h.name)
	if fresh == nil || fresh == a {
		return err
	}
	h.actor.CompareAndSwap(a, fresh)
	return op(fresh)
}

// limitFor returns the back pressure limit for sending to a. Sending to
// oneself never blocks, since the worker that would drain the queue is the
// one waiting.
func (h *Handle) limitFor(a *actor) int {
	if h.sender != nil && h.sender.actor.Load() == a {
		return 0
	}
	return a.settings.QueueLimit
}

// tellFrom sends msg with an explicit sender and never blocks.
func (h *Handle) tellFrom(msg any, sender *Handle) error {
	return h.do(func(a *actor) error {
		return a.send(context.Background(), msg, sender, noHandler{sender: sender}, 0)
	})
}

func (h *Handle) tellDelayed(msg any, delay time.Duration) error {
	return h.do(func(a *actor) error {
		return a.sendDelayed(msg, h.sender, delay)
	})
}

func (h *Handle) run(rh ReplyHandler, reply any) error {
	return h.do(func(a *actor) error { return a.run(rh, reply) })
}

// Request asks the actor behind h and waits for a reply of type T.
func Request[T any](ctx context.Context, h *Handle, msg any) (T, error) {
	var zero T
	f, err := h.AskFuture(msg)
	if err != nil {
		return zero, err
	}
	v, err := f.Await(ctx)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected reply type %T, want %T", v, zero)
	}
	return out, nil
}
