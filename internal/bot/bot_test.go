package bot

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/conversation"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"
	"github.com/m3rciful/gatebot/internal/records/filestore"

	tele "gopkg.in/telebot.v4"
)

const (
	adminID = int64(9)
	groupID = int64(-100)
)

type apiCall struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	mu      sync.Mutex
	sent    []apiCall
	banned  []int64
	invites []*tele.ChatInviteLink
	link    string
	sendErr error
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, apiCall{to: to, what: what, opts: opts})
	return &tele.Message{}, nil
}

func (f *fakeAPI) Ban(_ *tele.Chat, member *tele.ChatMember, _ ...bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banned = append(f.banned, member.User.ID)
	return nil
}

func (f *fakeAPI) CreateInviteLink(_ tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, link)
	return &tele.ChatInviteLink{InviteLink: f.link}, nil
}

func (f *fakeAPI) sentTo(chatID int64) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.sent {
		if c.to.Recipient() == tele.ChatID(chatID).Recipient() {
			out = append(out, c)
		}
	}
	return out
}

// fakeContext records what handlers send back to the chat.
type fakeContext struct {
	tele.Context
	update    tele.Update
	store     map[string]any
	sent      []string
	markups   []*tele.ReplyMarkup
	edits     []string
	responses []*tele.CallbackResponse
}

func (f *fakeContext) Update() tele.Update      { return f.update }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Message() *tele.Message {
	if f.update.Callback != nil {
		return f.update.Callback.Message
	}
	return f.update.Message
}

func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	if f.update.Message != nil {
		return f.update.Message.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	if m := f.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, v interface{}) {
	if f.store == nil {
		f.store = map[string]any{}
	}
	f.store[key] = v
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	text, _ := what.(string)
	f.sent = append(f.sent, text)
	var markup *tele.ReplyMarkup
	for _, o := range opts {
		if m, ok := o.(*tele.ReplyMarkup); ok {
			markup = m
		}
	}
	f.markups = append(f.markups, markup)
	return nil
}

func (f *fakeContext) EditOrSend(what interface{}, _ ...interface{}) error {
	text, _ := what.(string)
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func private(userID int64, text string) *fakeContext {
	return &fakeContext{update: tele.Update{Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID, Username: "user"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}}
}

func command(userID int64, text, payload string) *fakeContext {
	c := private(userID, text)
	c.update.Message.Payload = payload
	return c
}

func photo(userID int64, fileID string) *fakeContext {
	c := private(userID, "")
	c.update.Message.Photo = &tele.Photo{File: tele.File{FileID: fileID}}
	return c
}

func press(userID int64, unique, payload string) *fakeContext {
	return &fakeContext{update: tele.Update{Callback: &tele.Callback{
		Sender:  &tele.User{ID: userID},
		Data:    "\f" + unique + "|" + payload,
		Message: &tele.Message{Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate}},
	}}}
}

func newTestApp(t *testing.T) (*App, *fakeAPI) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.AdminID = adminID
	cfg.Telegram.GroupID = groupID
	cfg.Policy = config.PolicyConfig{CooldownHours: 24, InviteTTLHours: 24}

	store := records.NewStore(filestore.New(filepath.Join(t.TempDir(), "data.json")), "file")
	app, err := New(cfg, store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	api := &fakeAPI{link: "https://t.me/+invite"}
	app.caps.attach(api)
	return app, api
}

func submitApplication(t *testing.T, app *App, userID int64) {
	t.Helper()
	require.NoError(t, app.handleMenu(press(userID, menuUnique, conversation.SelectApply)))
	for _, c := range []*fakeContext{
		private(userID, "Haddad"),
		private(userID, "Oakridge"),
		photo(userID, "photo-1"),
		private(userID, "3rd company"),
		private(userID, "Sergeant"),
		private(userID, "Served since 2019"),
	} {
		require.NoError(t, app.dialogs.Handle(c))
	}
	require.False(t, app.dialogs.InProgress(userID))
}

func TestNewRegistersHandlers(t *testing.T) {
	app, _ := newTestApp(t)

	for _, name := range []string{"/start", "/cancel", "/members", "/warn", "/block", "/broadcast"} {
		_, _, ok := app.registry.LookupCommand(name)
		assert.True(t, ok, name)
	}
	_, cmd, _ := app.registry.LookupCommand("/warn")
	assert.True(t, cmd.AdminOnly)

	assert.Equal(t, []string{membership.ActionApprove, keyboard.CancelUnique, menuUnique, membership.ActionReject},
		app.registry.ListCallbacks())

	opts, err := app.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, &app.cfg.Config, opts.Config)
	assert.NotEmpty(t, opts.Middlewares)
	var joined bool
	for _, r := range opts.Routes {
		if r.Endpoint == tele.OnUserJoined {
			joined = true
		}
	}
	assert.True(t, joined)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestStartRendersMenu(t *testing.T) {
	app, _ := newTestApp(t)
	c := private(1, "/start")

	require.NoError(t, app.handleStart(c))
	require.Len(t, c.sent, 1)
	require.NotNil(t, c.markups[0])
	assert.True(t, app.dialogs.InProgress(1))

	cancel := private(1, "/cancel")
	require.NoError(t, app.handleCancel(cancel))
	assert.False(t, app.dialogs.InProgress(1))
	assert.Len(t, cancel.sent, 1)
}

func TestApplicationApprovedEndToEnd(t *testing.T) {
	app, api := newTestApp(t)
	submitApplication(t, app, 1)

	toAdmin := api.sentTo(adminID)
	require.Len(t, toAdmin, 2)
	assert.Contains(t, toAdmin[0].what, "Haddad")
	require.Len(t, toAdmin[0].opts, 1)
	assert.IsType(t, &tele.Photo{}, toAdmin[1].what)

	// Only the admin can decide.
	stranger := press(1, membership.ActionApprove, "1")
	require.NoError(t, app.handleDecision(true)(stranger))
	assert.Empty(t, stranger.edits)

	c := press(adminID, membership.ActionApprove, "1")
	require.NoError(t, app.handleDecision(true)(c))
	require.Len(t, c.edits, 1)
	assert.Equal(t, "✅ Haddad approved: member #001", c.edits[0])

	require.Len(t, api.invites, 1)
	assert.Equal(t, 1, api.invites[0].MemberLimit)
	welcome := api.sentTo(1)
	require.Len(t, welcome, 1)
	assert.Contains(t, welcome[0].what, "https://t.me/+invite")

	again := press(adminID, membership.ActionReject, "1")
	require.NoError(t, app.handleDecision(false)(again))
	assert.Equal(t, []string{textNotHandled}, again.edits)
}

func TestDecisionBadPayload(t *testing.T) {
	app, _ := newTestApp(t)
	c := press(adminID, membership.ActionApprove, "abc")
	require.NoError(t, app.handleDecision(true)(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, textNotHandled, c.responses[0].Text)
}

func TestAdminCommandWithPayload(t *testing.T) {
	app, api := newTestApp(t)
	submitApplication(t, app, 1)
	require.NoError(t, app.handleDecision(true)(press(adminID, membership.ActionApprove, "1")))

	warn := command(adminID, "/warn 001", "001")
	require.NoError(t, app.selectCommand(conversation.SelectWarn)(warn))
	require.Len(t, warn.sent, 1)
	assert.False(t, app.dialogs.InProgress(adminID))

	block := command(adminID, "/block", "")
	require.NoError(t, app.selectCommand(conversation.SelectBlock)(block))
	assert.True(t, app.dialogs.InProgress(adminID))
	require.NoError(t, app.dialogs.Handle(private(adminID, "#001")))
	assert.False(t, app.dialogs.InProgress(adminID))
	assert.Equal(t, []int64{1}, api.banned)

	members := command(adminID, "/members", "")
	require.NoError(t, app.selectCommand(conversation.SelectMembers)(members))
	assert.Equal(t, []string{"No members yet"}, members.sent)
}

func TestUserJoinedGreetsKnownMembers(t *testing.T) {
	app, _ := newTestApp(t)
	submitApplication(t, app, 1)
	require.NoError(t, app.handleDecision(true)(press(adminID, membership.ActionApprove, "1")))

	joined := func(chatID int64, users ...tele.User) *fakeContext {
		return &fakeContext{update: tele.Update{Message: &tele.Message{
			Chat:        &tele.Chat{ID: chatID, Type: tele.ChatSuperGroup},
			UsersJoined: users,
		}}}
	}

	c := joined(groupID, tele.User{ID: 1}, tele.User{ID: 2})
	require.NoError(t, app.handleUserJoined(c))
	require.Len(t, c.sent, 1)
	assert.True(t, strings.HasPrefix(c.sent[0], "Welcome #001!"))

	other := joined(-555, tele.User{ID: 1})
	require.NoError(t, app.handleUserJoined(other))
	assert.Empty(t, other.sent)
}

func TestPrivateOnly(t *testing.T) {
	calls := 0
	h := privateOnly(func(tele.Context) error { calls++; return nil })

	group := private(1, "/start")
	group.update.Message.Chat.Type = tele.ChatGroup
	require.NoError(t, h(group))
	require.NoError(t, h(private(1, "/start")))
	assert.Equal(t, 1, calls)
}

func TestRender(t *testing.T) {
	out := render([]conversation.Reply{
		{Text: "menu", Options: []conversation.Option{{Label: "A", Value: "a"}, {Label: "B", Value: "b"}, {Label: "C", Value: "c"}}, Cancelable: true},
		{Text: "plain"},
	})
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Markup)
	rows := out[0].Markup.InlineKeyboard
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 1)
	assert.Equal(t, keyboard.CancelUnique, rows[2][0].Unique)
	assert.Nil(t, out[1].Markup)
}

func TestDecisionSummary(t *testing.T) {
	app := records.Application{Answers: records.Answers{Lastname: "Haddad"}}

	assert.Equal(t, "❌ Haddad rejected", decisionSummary(membership.Decision{Application: app, Notified: true}))
	assert.Equal(t,
		"✅ Haddad approved: member #007\n"+textInviteFailed+"\n"+textUnreachable,
		decisionSummary(membership.Decision{Approved: true, Application: app, Member: records.Member{Number: 7}}),
	)
}

func TestCapabilitiesDetached(t *testing.T) {
	var caps capabilities
	err := caps.Notify(t.Context(), 1, membership.Message{Text: "x"})
	assert.ErrorIs(t, err, errDetached)
	_, err = caps.CreateInvite(t.Context(), groupID, "n", time.Now())
	assert.ErrorIs(t, err, errDetached)
}

func TestCapabilitiesNotifyAndInvite(t *testing.T) {
	var caps capabilities
	api := &fakeAPI{}
	caps.attach(api)

	err := caps.Notify(t.Context(), 5, membership.Message{
		Text:       "summary",
		Actions:    []membership.Action{{Label: "ok", Unique: "approve", Payload: "5"}},
		Attachment: &membership.Attachment{FileID: "f", Kind: records.KindDocument, Caption: "doc"},
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 2)
	assert.Equal(t, "summary", api.sent[0].what)
	assert.IsType(t, &tele.Document{}, api.sent[1].what)

	_, err = caps.CreateInvite(t.Context(), groupID, "member 001", time.Unix(100, 0))
	assert.Error(t, err, "empty link")
	require.Len(t, api.invites, 1)
	assert.Equal(t, int64(100), api.invites[0].ExpireUnixtime)

	api.sendErr = errors.New("blocked")
	assert.Error(t, caps.Notify(t.Context(), 5, membership.Message{Text: "again"}))
}
