package actor

type (
	// Receiver is the user side of an actor. Receive is called once per
	// delivered message, never concurrently for the same actor. A returned
	// error or a panic is a handler failure.
	Receiver interface {
		Receive(mc MessageContext, msg any) error
	}

	// ReceiverFunc adapts a function to Receiver.
	ReceiverFunc func(mc MessageContext, msg any) error

	// Factory creates the Receiver of a new actor. It runs while the registry
	// is locked, so it must not call back into the System (GetActor, Exists,
	// RegisterActor, Tell, ...); doing so deadlocks. Setup that needs the
	// System belongs in the handler of an init message (WithInitMessage).
	Factory func() Receiver

	// ReplyHandler consumes the reply to an Ask. It runs on the worker of the
	// asking actor, or on the replying actor's worker when the ask came from
	// outside the system.
	ReplyHandler func(mc MessageContext, reply any) error
)

func (f ReceiverFunc) Receive(mc MessageContext, msg any) error { return f(mc, msg) }

// Func is a shorthand for a Factory returning a stateless ReceiverFunc.
func Func(f func(mc MessageContext, msg any) error) Factory {
	return func() Receiver { return ReceiverFunc(f) }
}
