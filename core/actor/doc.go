// Package actor is a process-local actor runtime. Actors are named units of
// state that only talk through asynchronous messages; each one handles its
// mailbox one message at a time, so handlers need no locking.
//
// # Registering Actors
//
//	sys := actor.NewSystem(actor.Options{Workers: 8})
//	defer sys.ShutDownAndWait()
//
//	counter, err := sys.RegisterActor("counter", func() actor.Receiver {
//	    n := 0
//	    return actor.Match(
//	        actor.On[int](func(mc actor.MessageContext, d int) error {
//	            n += d
//	            return nil
//	        }),
//	        actor.On[string](func(mc actor.MessageContext, _ string) error {
//	            return mc.Reply(n)
//	        }),
//	    )
//	}, actor.DefaultSettings())
//
// Registering a name that exists returns a handle to the existing actor.
//
// # Sending Messages
//
// A [Handle] resolves its actor by name on first use and again after the actor
// was replaced, so handles survive unregister and re-register:
//
//	_ = counter.Tell(5)                                   // fire and forget
//	n, err := actor.Request[int](ctx, counter, "get")     // wait for a reply
//	_ = counter.Ask("get", func(mc actor.MessageContext, reply any) error {
//	    return nil                                        // callback style
//	})
//
// Inside a handler the [MessageContext] sends on behalf of the actor. Replies
// to an Ask issued there run on the asking actor's worker, never concurrently
// with its other messages:
//
//	mc.Ask("counter", "get", func(mc actor.MessageContext, reply any) error {
//	    total += reply.(int)
//	    return nil
//	})
//
// Messages can be delayed; they are dropped if the receiver is unregistered
// before they fire:
//
//	_ = sys.TellDelayed("counter", 1, time.Second)
//
// # Failures
//
// A handler that returns an error or panics does not take the worker down.
// The sender, if known, receives a [FailedMessage]; the actor's
// [Settings.ErrorHandler] then decides between [Continue] and [Abort]. An
// aborted actor drops its queue and is unregistered.
//
// # Back Pressure
//
// [Handle.TellWithBackPressure] blocks while the mailbox holds limit messages.
// Actors registered with a [Settings.QueueLimit] apply it to every Tell and
// Ask from other actors or from outside.
package actor
