package actor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type shape interface{ Area() int }

type square struct{ Side int }

func (s square) Area() int { return s.Side * s.Side }

func TestMatch_firstMatchingCaseWins(t *testing.T) {
	s := newTestSystem(t)
	seen := make(chan string, 8)
	h, err := s.RegisterActor("router", func() Receiver {
		return Match(
			On[square](func(mc MessageContext, sq square) error {
				seen <- fmt.Sprintf("square:%d", sq.Side)
				return nil
			}),
			On[shape](func(mc MessageContext, sh shape) error {
				seen <- fmt.Sprintf("shape:%d", sh.Area())
				return nil
			}),
			On[string](func(mc MessageContext, str string) error {
				seen <- "string:" + str
				return nil
			}),
		)
	}, DefaultSettings())
	require.NoError(t, err)

	require.NoError(t, h.Tell(square{Side: 3}))
	require.NoError(t, h.Tell(&square{Side: 2}))
	require.NoError(t, h.Tell(42))
	require.NoError(t, h.Tell("hi"))

	require.Equal(t, "square:3", <-seen)
	require.Equal(t, "shape:4", <-seen)
	require.Equal(t, "string:hi", <-seen)
	require.Eventually(t, func() bool { return h.ProcessedMessageCount() == 4 }, time.Second, time.Millisecond)
	require.Empty(t, seen)
}

func TestMatch_otherwiseAndErrors(t *testing.T) {
	s := newTestSystem(t)
	errs := make(chan error, 2)
	h, err := s.RegisterActor("picky", func() Receiver {
		return Match(
			On[int](func(MessageContext, int) error { return errors.New("no ints") }),
			Otherwise(func(MessageContext, any) error { return nil }),
		)
	}, DefaultSettings().WithErrorHandler(func(err error) Decision {
		errs <- err
		return Continue
	}))
	require.NoError(t, err)

	require.NoError(t, h.Tell(struct{}{}))
	require.NoError(t, h.Tell(1))
	require.ErrorContains(t, <-errs, "no ints")
}

func TestMatchReply(t *testing.T) {
	s := newTestSystem(t)
	h, err := s.RegisterActor("echo", echo(), DefaultSettings())
	require.NoError(t, err)

	got := make(chan string, 1)
	require.NoError(t, h.Ask(7, MatchReply(
		On[string](func(MessageContext, string) error { got <- "string"; return nil }),
		On[int](func(MessageContext, int) error { got <- "int"; return nil }),
	)))
	require.Equal(t, "int", <-got)
}
