package actor

import "fmt"

// FailedMessage is delivered to the sender of a message whose handler failed.
// It is a value; receivers must not modify Message.
type FailedMessage struct {
	Message any
	Cause   error
	// Actor is the name of the actor that failed.
	Actor string
}

func (m FailedMessage) String() string {
	return fmt.Sprintf("failed message on %s: %v (%T)", m.Actor, m.Cause, m.Message)
}
