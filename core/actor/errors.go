package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregisteredRecipient is the cause of every failure to reach an
	// actor that is not (or no longer) registered.
	ErrUnregisteredRecipient = errors.New("unregistered recipient")
	// ErrNoSender is returned by Reply when the message has nobody to reply to.
	ErrNoSender = errors.New("message has no sender")
	// ErrSystemShutDown is returned when registering on a system that shut down.
	ErrSystemShutDown = errors.New("actor system is shut down")
	ErrInvalidName    = errors.New("actor name must not be empty")
	ErrNilReceiver    = errors.New("actor factory returned nil")
)

// UnregisteredRecipientError names the actor that could not be reached.
type UnregisteredRecipientError struct {
	Name string
}

func (e *UnregisteredRecipientError) Error() string {
	return fmt.Sprintf("actor %q: %s", e.Name, ErrUnregisteredRecipient)
}

func (e *UnregisteredRecipientError) Is(target error) bool { return target == ErrUnregisteredRecipient }

func unregistered(name string) error { return &UnregisteredRecipientError{Name: name} }

// DeliveryError is what an actor's ErrorHandler receives when a handler fails.
type DeliveryError struct {
	Actor   string
	Message any
	// Reply is true when the failing code was a ReplyHandler.
	Reply bool
	Err   error
}

func (e *DeliveryError) Error() string {
	kind := "message"
	if e.Reply {
		kind = "reply"
	}
	return fmt.Sprintf("actor %q failed on %s %T: %v", e.Actor, kind, e.Message, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
