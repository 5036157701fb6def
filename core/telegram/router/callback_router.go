package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// respondContext remembers whether the handler answered the callback query.
type respondContext struct {
	tele.Context
	responded bool
}

func (r *respondContext) Respond(resp ...*tele.CallbackResponse) error {
	r.responded = true
	return r.Context.Respond(resp...)
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Callbacks the handler leaves unanswered get an empty answer so the client
// stops its spinner.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.Key(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		rc := &respondContext{Context: c}
		defer func() {
			if !rc.responded {
				_ = c.Respond()
			}
		}()

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := reg.CallbackNotFound()
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(rc, name, start, func() error {
				if fallback != nil {
					return fallback(rc)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(rc, name, start, func() error {
			return cbHandler(rc)
		}, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
