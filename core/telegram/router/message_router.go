package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/gatebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the per-user dialog driver messages are routed to.
type Conversation interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for messages outside a conversation.
type MessageOptions struct {
	Commands     CommandRouteOptions
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo and document messages.
// Messages from users with an active conversation go to conv; text that names
// a command the bot did not route directly (e.g. "/start@bot") is dispatched
// through the registry.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inConversation := func(c tele.Context) bool {
		sender := c.Sender()
		return conv != nil && sender != nil && conv.InProgress(sender.ID)
	}

	textHandler := func(c tele.Context) error {
		start := time.Now()
		if inConversation(c) {
			return handleWithSummary(c, "conversation.text", start, func() error {
				return conv.Handle(c)
			})
		}

		text := strings.TrimSpace(c.Text())
		if reg != nil && strings.HasPrefix(text, "/") {
			name, _, _ := strings.Cut(strings.Fields(text)[0], "@")
			if key, cmd, ok := reg.LookupCommand(name); ok && cmd.Handler != nil {
				return wrapCommand(key, cmd, opts.Commands)(c)
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	mediaHandler := func(kind string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if inConversation(c) {
				return handleWithSummary(c, "conversation."+kind, start, func() error {
					return conv.Handle(c)
				})
			}
			if opts.UnknownMedia != nil {
				return handleWithSummary(c, "unexpected_"+kind, start, func() error {
					return opts.UnknownMedia(c)
				})
			}
			logHandlerSummary(c, "unexpected_"+kind, start, "skip", nil)
			return nil
		}
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnPhoto, Handler: mediaHandler("photo")},
		{Endpoint: tele.OnDocument, Handler: mediaHandler("document")},
	}
}
