package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// Outgoing is one message of a reply sequence.
type Outgoing struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	msg := Outgoing{Text: text}
	if len(markup) > 0 {
		msg.Markup = markup[0]
	}
	return SendSequence(c, msg)
}

// SendSequence delivers msgs to the current chat as a single dispatcher job so
// their order is kept. Delivery stops at the first failure; a retry resumes
// after the last delivered message.
func SendSequence(c tele.Context, msgs ...Outgoing) error {
	if len(msgs) == 0 {
		return nil
	}
	action := "send.text"
	if len(msgs) > 1 {
		action = "send.sequence"
	}
	next := 0
	return sendAsync(c, action, "sendMessage", func() error {
		for ; next < len(msgs); next++ {
			m := msgs[next]
			if m.Text == "" {
				continue
			}
			var err error
			if m.Markup != nil {
				err = c.Send(m.Text, m.Markup)
			} else {
				err = c.Send(m.Text)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// EditOrSend replaces the text of the message behind a callback, or sends text
// as a new message when there is nothing to edit.
func EditOrSend(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "edit.text", "editMessageText", func() error {
		return c.EditOrSend(text, opts)
	})
}
