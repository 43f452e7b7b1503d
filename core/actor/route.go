package actor

import (
	"sync/atomic"

	"github.com/codewandler/mailroom/core/future"
)

// replyRoute decides where Reply sends its message. There are four shapes: a
// plain message without a reply handler, an ask from an actor, an ask from
// outside the system, and an ask answered through a future.
type replyRoute interface {
	reply(from *actor, msg any) error
}

// failer is implemented by routes that want to learn about handler failures.
type failer interface {
	fail(err error)
}

// noHandler replies by telling the sender, if there is one.
type noHandler struct {
	sender *Handle
}

func (r noHandler) reply(from *actor, msg any) error {
	if r.sender == nil {
		return ErrNoSender
	}
	return r.sender.tellFrom(msg, from.self)
}

// handlerWithSender runs the reply handler on the asking actor's worker.
type handlerWithSender struct {
	sender  *Handle
	handler ReplyHandler
	used    atomic.Bool
}

func (r *handlerWithSender) reply(_ *actor, msg any) error {
	if !r.used.CompareAndSwap(false, true) {
		return nil
	}
	return r.sender.run(r.handler, msg)
}

// handlerNoSender runs the reply handler on the replying actor's own worker.
type handlerNoSender struct {
	handler ReplyHandler
	used    atomic.Bool
}

func (r *handlerNoSender) reply(from *actor, msg any) error {
	if !r.used.CompareAndSwap(false, true) {
		return nil
	}
	return from.runInline(r.handler, msg)
}

// futureRoute completes a future from the replying actor's worker. The asker
// may be blocked on the future inside its own handler, so nothing is queued
// on the asker.
type futureRoute struct {
	f    *future.Future[any]
	used atomic.Bool
}

func (r *futureRoute) reply(from *actor, msg any) error {
	if !r.used.CompareAndSwap(false, true) {
		return nil
	}
	// counted first so that a resolved future implies an updated counter
	from.countReply()
	r.f.Complete(msg)
	return nil
}

func (r *futureRoute) fail(err error) { r.f.Fail(err) }

func newRoute(sender *Handle, h ReplyHandler) replyRoute {
	switch {
	case h == nil:
		return noHandler{sender: sender}
	case sender != nil:
		return &handlerWithSender{sender: sender, handler: h}
	default:
		return &handlerNoSender{handler: h}
	}
}
