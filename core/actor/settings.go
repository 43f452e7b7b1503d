package actor

import "github.com/codewandler/mailroom/core/processor"

type (
	Decision     = processor.Decision
	ErrorHandler = processor.ErrorHandler
)

const (
	Continue = processor.Continue
	Abort    = processor.Abort
)

var (
	ContinueOnError ErrorHandler = processor.ContinueOnError
	AbortOnError    ErrorHandler = processor.AbortOnError
)

// Settings are consumed once, when an actor is registered.
type Settings struct {
	// ErrorHandler decides what happens after a handler failure. The error is
	// a *DeliveryError. Nil means Continue.
	ErrorHandler ErrorHandler
	// QueueLimit makes Tell block while this many messages are queued.
	// 0 means unlimited.
	QueueLimit int
}

func DefaultSettings() Settings {
	return Settings{ErrorHandler: processor.ContinueOnError}
}

func (s Settings) WithErrorHandler(h ErrorHandler) Settings {
	s.ErrorHandler = h
	return s
}

func (s Settings) WithQueueLimit(limit int) Settings {
	s.QueueLimit = limit
	return s
}

func (s Settings) withDefaults(d Settings) Settings {
	if s.ErrorHandler == nil {
		s.ErrorHandler = d.ErrorHandler
	}
	if s.ErrorHandler == nil {
		s.ErrorHandler = processor.ContinueOnError
	}
	if s.QueueLimit <= 0 {
		s.QueueLimit = d.QueueLimit
	}
	return s
}
