package actor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/mailroom/core/future"
)

// MessageContext is handed to a Receiver for one delivery. It is reused for
// the next delivery of the same actor, so it must not be retained after
// Receive returns; use Responder to reply later.
type MessageContext interface {
	context.Context

	Log() *slog.Logger
	// Name is the name of the receiving actor.
	Name() string
	// Self returns a handle to the receiving actor.
	Self() *Handle

	// Message is the message being delivered.
	Message() any
	// IsReply is true while a ReplyHandler runs.
	IsReply() bool

	// Reply answers the current message. For an Ask the first reply resolves
	// it and further replies are ignored. For a plain message the reply is
	// told to the sender. Without a sender it returns ErrNoSender.
	Reply(msg any) error
	// Responder captures the reply route of the current message so that the
	// reply can be sent from a later delivery of this actor.
	Responder() func(msg any) error

	Tell(name string, msg any) error
	TellDelayed(name string, msg any, delay time.Duration) error
	// Ask sends msg to name; rh later runs on this actor's worker with the reply.
	Ask(name string, msg any, rh ReplyHandler) error
	// AskFuture is completed from the replying actor, so the handler may
	// wait on the future.
	AskFuture(name string, msg any) (*future.Future[any], error)

	// Actor returns a handle whose messages carry this actor as sender.
	Actor(name string) *Handle
	RegisterActor(name string, f Factory, settings Settings, opts ...RegisterOption) (*Handle, error)
	// Unregister removes this actor. Queued messages are still delivered.
	Unregister() bool
	UnregisterActor(name string) bool
}

type messageContext struct {
	context.Context
	a     *actor
	msg   any
	reply bool
	route replyRoute
}

func (mc *messageContext) reset(msg any, reply bool, route replyRoute) {
	mc.msg = msg
	mc.reply = reply
	mc.route = route
}

func (mc *messageContext) Log() *slog.Logger { return mc.a.log }
func (mc *messageContext) Name() string      { return mc.a.name }
func (mc *messageContext) Message() any      { return mc.msg }
func (mc *messageContext) IsReply() bool     { return mc.reply }

func (mc *messageContext) Self() *Handle {
	return mc.a.sys.newHandle(mc.a.name, mc.a, mc.a.self)
}

func (mc *messageContext) Reply(msg any) error {
	if mc.route == nil {
		return ErrNoSender
	}
	return mc.route.reply(mc.a, msg)
}

func (mc *messageContext) Responder() func(msg any) error {
	a, route := mc.a, mc.route
	return func(msg any) error {
		if route == nil {
			return ErrNoSender
		}
		return route.reply(a, msg)
	}
}

func (mc *messageContext) Actor(name string) *Handle {
	return mc.a.sys.newHandle(name, nil, mc.a.self)
}

func (mc *messageContext) Tell(name string, msg any) error {
	return mc.Actor(name).Tell(msg)
}

func (mc *messageContext) TellDelayed(name string, msg any, delay time.Duration) error {
	return mc.Actor(name).tellDelayed(msg, delay)
}

func (mc *messageContext) Ask(name string, msg any, rh ReplyHandler) error {
	return mc.Actor(name).Ask(msg, rh)
}

func (mc *messageContext) AskFuture(name string, msg any) (*future.Future[any], error) {
	return mc.Actor(name).AskFuture(msg)
}

func (mc *messageContext) RegisterActor(name string, f Factory, settings Settings, opts ...RegisterOption) (*Handle, error) {
	return mc.a.sys.register(name, f, settings, mc.a.self, opts...)
}

func (mc *messageContext) Unregister() bool { return mc.a.sys.unregisterInstance(mc.a) }

func (mc *messageContext) UnregisterActor(name string) bool {
	return mc.a.sys.UnregisterActor(name)
}

var _ MessageContext = (*messageContext)(nil)

func typeName(v any) string { return fmt.Sprintf("%T", v) }
