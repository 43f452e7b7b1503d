package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/codewandler/mailroom/core/processor"
)

// actor binds one Receiver to one Processor. Everything except the atomics
// and the processor is only touched from the processor's worker.
type actor struct {
	name     string
	sys      *System
	log      *slog.Logger
	recv     Receiver
	proc     *processor.Processor
	settings Settings

	registered atomic.Bool
	messages   atomic.Int64
	replies    atomic.Int64

	// self is used as the sender of everything this actor sends.
	self *Handle
	mc   *messageContext
}

func newActor(sys *System, name string, recv Receiver, settings Settings) *actor {
	a := &actor{
		name:     name,
		sys:      sys,
		log:      sys.log.With(slog.String("actor", name)),
		recv:     recv,
		settings: settings,
	}
	a.self = sys.newHandle(name, a, nil)
	a.mc = &messageContext{Context: sys.ctx, a: a}
	a.proc = processor.New(processor.Options{
		Name:         name,
		Pool:         sys.pool,
		ErrorHandler: a.decide,
		Throughput:   sys.throughput,
		Logger:       a.log,
		Depth:        sys.metrics.QueueDepth(name),
	})
	a.registered.Store(true)
	return a
}

func (a *actor) decide(err error) Decision {
	d := a.settings.ErrorHandler(err)
	if d == Abort {
		a.sys.unregisterInstance(a)
	}
	return d
}

// send enqueues msg. A limit > 0 applies back pressure with that limit.
func (a *actor) send(ctx context.Context, msg any, sender *Handle, route replyRoute, limit int) error {
	if !a.registered.Load() {
		return unregistered(a.name)
	}
	task := a.messageTask(msg, sender, route)
	if limit <= 0 {
		a.proc.Add(task)
		return nil
	}
	ok, err := a.proc.AddWithBackPressure(ctx, task, limit)
	if err != nil {
		return err
	}
	if !ok {
		return unregistered(a.name)
	}
	return nil
}

// sendDelayed enqueues msg once delay has passed, unless the actor has been
// unregistered by then.
func (a *actor) sendDelayed(msg any, sender *Handle, delay time.Duration) error {
	if !a.registered.Load() {
		return unregistered(a.name)
	}
	task := a.messageTask(msg, sender, noHandler{sender: sender})
	err := a.sys.delay.RunLater(func() {
		if !a.registered.Load() {
			a.sys.metrics.DelayedDropped().Inc()
			a.log.Debug("dropping delayed message for unregistered actor", slog.String("msg_type", typeName(msg)))
			return
		}
		a.proc.Add(task)
	}, delay)
	if err != nil {
		return err
	}
	a.sys.metrics.DelayedScheduled().Inc()
	return nil
}

func (a *actor) messageTask(msg any, sender *Handle, route replyRoute) processor.Task {
	return func() error {
		a.messages.Add(1)
		defer a.sys.metrics.MessageDuration(a.name).ObserveDuration()

		a.mc.reset(msg, false, route)
		err := processor.Safe(func() error { return a.recv.Receive(a.mc, msg) })
		a.mc.reset(nil, false, nil)

		a.sys.metrics.MessageProcessed(a.name, err == nil)
		if err == nil {
			return nil
		}

		if f, ok := route.(failer); ok {
			f.fail(err)
		}
		if sender != nil {
			// best effort; the sender may be gone already
			if serr := sender.tellFrom(FailedMessage{Message: msg, Cause: err, Actor: a.name}, a.self); serr != nil {
				a.log.Debug("could not route failed message", slog.String("sender", sender.Name()), slog.Any("error", serr))
			}
		} else {
			a.log.Error("message handler failed", slog.String("msg_type", typeName(msg)), slog.Any("error", err))
		}
		return &DeliveryError{Actor: a.name, Message: msg, Err: err}
	}
}

// run enqueues a reply handler so that it executes on this actor's worker.
func (a *actor) run(h ReplyHandler, reply any) error {
	if !a.registered.Load() {
		return unregistered(a.name)
	}
	a.proc.Add(func() error {
		a.mc.reset(reply, true, noHandler{})
		err := a.handleReply(a.mc, h, reply)
		a.mc.reset(nil, false, nil)
		return err
	})
	return nil
}

// runInline executes a reply handler right away. It must only be called from
// this actor's own worker.
func (a *actor) runInline(h ReplyHandler, reply any) error {
	mc := &messageContext{Context: a.sys.ctx, a: a}
	mc.reset(reply, true, noHandler{})
	return a.handleReply(mc, h, reply)
}

func (a *actor) handleReply(mc *messageContext, h ReplyHandler, reply any) error {
	a.countReply()
	err := processor.Safe(func() error { return h(mc, reply) })
	if err == nil {
		return nil
	}
	a.log.Error("reply handler failed", slog.String("reply_type", typeName(reply)), slog.Any("error", err))
	return &DeliveryError{Actor: a.name, Message: reply, Reply: true, Err: err}
}

func (a *actor) countReply() {
	a.replies.Add(1)
	a.sys.metrics.ReplyProcessed(a.name)
}

// unregister marks the actor as gone and lets its queue drain.
func (a *actor) unregister() {
	a.registered.Store(false)
	a.proc.UnregisterGracefully()
}

func (a *actor) shutdown(now bool) {
	a.registered.Store(false)
	a.proc.Shutdown(now)
}
