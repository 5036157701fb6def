package router

import (
	"testing"

	tg "github.com/m3rciful/gatebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]any
	responses []*tele.CallbackResponse
}

func (f *fakeContext) Update() tele.Update     { return f.update }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	case f.update.Message != nil:
		return f.update.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Message != nil {
		return f.update.Message.Chat
	}
	return nil
}

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, v interface{}) {
	if f.store == nil {
		f.store = map[string]any{}
	}
	f.store[key] = v
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		resp = []*tele.CallbackResponse{nil}
	}
	f.responses = append(f.responses, resp...)
	return nil
}

func text(userID int64, s string) *fakeContext {
	return &fakeContext{update: tele.Update{Message: &tele.Message{
		Text:   s,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}}}
}

func photo(userID int64) *fakeContext {
	return &fakeContext{update: tele.Update{Message: &tele.Message{
		Photo:  &tele.Photo{File: tele.File{FileID: "p"}},
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}}}
}

func press(userID int64, data string) *fakeContext {
	return &fakeContext{update: tele.Update{Callback: &tele.Callback{
		Sender: &tele.User{ID: userID},
		Data:   data,
	}}}
}

type fakeConversation struct {
	active  map[int64]bool
	handled int
}

func (f *fakeConversation) InProgress(userID int64) bool { return f.active[userID] }

func (f *fakeConversation) Handle(tele.Context) error {
	f.handled++
	return nil
}

func routeFor(routes []tg.Route, endpoint any) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestMessageRoutesPreferConversation(t *testing.T) {
	conv := &fakeConversation{active: map[int64]bool{1: true}}
	unknown := 0
	routes := MessageRoutes(conv, nil, MessageOptions{
		UnknownText:  func(tele.Context) error { unknown++; return nil },
		UnknownMedia: func(tele.Context) error { unknown++; return nil },
	})
	if len(routes) != 3 {
		t.Fatalf("routes = %d, want 3", len(routes))
	}
	onText := routeFor(routes, tele.OnText)
	onPhoto := routeFor(routes, tele.OnPhoto)

	_ = onText(text(1, "Haddad"))
	_ = onPhoto(photo(1))
	_ = onText(text(2, "hello"))
	_ = onPhoto(photo(2))
	if conv.handled != 2 || unknown != 2 {
		t.Fatalf("handled=%d unknown=%d", conv.handled, unknown)
	}
}

func TestMessageRoutesDispatchCommandsWithAdminGate(t *testing.T) {
	reg := tg.NewRegistry()
	ran := map[string]int{}
	mustRegister(t, reg, "/menu", tg.Command{Description: "menu", Handler: func(tele.Context) error { ran["menu"]++; return nil }})
	mustRegister(t, reg, "/members", tg.Command{Description: "members", AdminOnly: true, Handler: func(tele.Context) error { ran["members"]++; return nil }})

	rejected := 0
	routes := MessageRoutes(nil, reg, MessageOptions{Commands: CommandRouteOptions{
		AdminID:       9,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	}})
	onText := routeFor(routes, tele.OnText)

	_ = onText(text(1, "/menu@gatebot"))
	_ = onText(text(1, "/members"))
	_ = onText(text(9, "/members"))
	_ = onText(text(1, "menu"))
	if ran["menu"] != 1 || ran["members"] != 1 || rejected != 1 {
		t.Fatalf("ran=%v rejected=%d", ran, rejected)
	}
}

func TestCommandRoutesIncludeAliases(t *testing.T) {
	reg := tg.NewRegistry()
	mustRegister(t, reg, "/start", tg.Command{Description: "start", Aliases: []string{"begin"}, Handler: func(tele.Context) error { return nil }})
	routes := CommandRoutes(reg, CommandRouteOptions{})
	if len(routes) != 2 || routes[0].Endpoint != "/start" || routes[1].Endpoint != "/begin" {
		t.Fatalf("routes = %+v", routes)
	}
}

func TestCallbackRouteAnswersOnce(t *testing.T) {
	reg := tg.NewRegistry()
	var payload string
	if err := reg.RegisterCallback("menu", func(c tele.Context) error {
		payload = c.Callback().Data
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("toast", func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "done"})
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	h := CallbackRoute(reg).Handler

	c := press(1, "\fmenu|apply")
	if err := h(c); err != nil {
		t.Fatalf("menu: %v", err)
	}
	if payload != "\fmenu|apply" || len(c.responses) != 1 {
		t.Fatalf("payload=%q responses=%d", payload, len(c.responses))
	}

	c = press(1, "\ftoast|")
	_ = h(c)
	if len(c.responses) != 1 || c.responses[0].Text != "done" {
		t.Fatalf("toast responses = %+v", c.responses)
	}

	c = press(1, "\fgone|x")
	_ = h(c)
	if len(c.responses) != 1 || c.responses[0] == nil || c.responses[0].Text == "" {
		t.Fatalf("not-found responses = %+v", c.responses)
	}
}

func mustRegister(t *testing.T, reg *tg.Registry, name string, cmd tg.Command) {
	t.Helper()
	if err := reg.RegisterCommand(name, cmd); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}
