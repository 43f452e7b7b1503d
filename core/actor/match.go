package actor

import "log/slog"

// Case is one entry of a Match. It reports whether it handled msg.
type Case func(mc MessageContext, msg any) (bool, error)

// On handles messages that are a T. For an interface T every implementation
// matches.
func On[T any](f func(mc MessageContext, msg T) error) Case {
	return func(mc MessageContext, msg any) (bool, error) {
		v, ok := msg.(T)
		if !ok {
			return false, nil
		}
		return true, f(mc, v)
	}
}

// Otherwise matches everything; put it last.
func Otherwise(f func(mc MessageContext, msg any) error) Case {
	return func(mc MessageContext, msg any) (bool, error) {
		return true, f(mc, msg)
	}
}

// Match builds a Receiver that tries cases in order and runs only the first
// that matches. Messages nothing matches are dropped.
func Match(cases ...Case) Receiver {
	return ReceiverFunc(func(mc MessageContext, msg any) error {
		return dispatch(cases, mc, msg)
	})
}

// MatchReply is Match for ReplyHandlers.
func MatchReply(cases ...Case) ReplyHandler {
	return func(mc MessageContext, reply any) error {
		return dispatch(cases, mc, reply)
	}
}

func dispatch(cases []Case, mc MessageContext, msg any) error {
	for _, c := range cases {
		if ok, err := c(mc, msg); ok {
			return err
		}
	}
	mc.Log().Debug("no case matched message", slog.String("msg_type", typeName(msg)))
	return nil
}
