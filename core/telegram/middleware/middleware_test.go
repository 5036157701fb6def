package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
	sent   int
}

func messageFrom(userID int64, text string) *fakeContext {
	return &fakeContext{update: tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	}}
}

func callbackFrom(userID int64) *fakeContext {
	return &fakeContext{update: tele.Update{
		ID:       2,
		Callback: &tele.Callback{Sender: &tele.User{ID: userID}, Data: "\fmenu|apply"},
	}}
}

func (f *fakeContext) Update() tele.Update { return f.update }

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

func (f *fakeContext) Send(interface{}, ...interface{}) error {
	f.sent++
	return nil
}

func TestRateLimitPerUser(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(messageFrom(7, "a"))
	_ = h(messageFrom(7, "b"))
	_ = h(messageFrom(8, "c"))
	_ = h(callbackFrom(7))
	if calls != 3 || limited != 1 {
		t.Fatalf("calls=%d limited=%d, want 3 and 1", calls, limited)
	}

	now = now.Add(2 * time.Second)
	_ = h(messageFrom(7, "d"))
	if calls != 4 {
		t.Fatalf("message after interval was dropped")
	}
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	m := RegisterMetrics(prometheus.NewRegistry())
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(messageFrom(1, "x"))
	if err == nil {
		t.Fatalf("panic swallowed without error")
	}
	if v := testutil.ToFloat64(m.Panics); v != 1 {
		t.Fatalf("panics = %v, want 1", v)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  42,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	_ = h(messageFrom(42, "/members"))
	_ = h(messageFrom(43, "/members"))
	if passed != 1 || rejected != 1 {
		t.Fatalf("passed=%d rejected=%d", passed, rejected)
	}

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { passed++; return nil })
	_ = closed(messageFrom(42, "/members"))
	if passed != 1 {
		t.Fatalf("handler ran with no admin configured")
	}
}

func TestMessageMetricsMiddleware(t *testing.T) {
	m := RegisterMetrics(prometheus.NewRegistry())
	c := messageFrom(5, "hi")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("one"); err != nil {
			return err
		}
		return c.Send("two", &tele.ReplyMarkup{})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	msgs, kb := GetCounters(c)
	if msgs != 2 || !kb {
		t.Fatalf("counters = %d, %v", msgs, kb)
	}
	if v := testutil.ToFloat64(m.Updates.WithLabelValues("message")); v != 1 {
		t.Fatalf("updates = %v", v)
	}
	if v := testutil.ToFloat64(m.Messages); v != 2 {
		t.Fatalf("replies = %v", v)
	}
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := callbackFrom(9)
	h := LoggerMiddleware(func(c tele.Context) error {
		if _, ok := c.Get("rid").(string); !ok {
			return errors.New("rid missing")
		}
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if c.Get("logger_ctx") == nil {
		t.Fatalf("context was not stored")
	}
}
