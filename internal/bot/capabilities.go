package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"

	tele "gopkg.in/telebot.v4"
)

// errDetached is returned by capability calls made before the bot started.
var errDetached = errors.New("bot: telegram client not attached")

// botAPI is the slice of *tele.Bot the capability adapter calls.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Ban(chat *tele.Chat, member *tele.ChatMember, revokeMessages ...bool) error
	CreateInviteLink(chat tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error)
}

// capabilities implements membership.Capabilities on top of the Bot API.
// The client is attached once the runtime has built the bot.
type capabilities struct {
	api atomic.Pointer[botAPI]
}

var _ membership.Capabilities = (*capabilities)(nil)

func (c *capabilities) attach(api botAPI) {
	if api == nil {
		c.api.Store(nil)
		return
	}
	c.api.Store(&api)
}

func (c *capabilities) client() (botAPI, error) {
	p := c.api.Load()
	if p == nil {
		return nil, errDetached
	}
	return *p, nil
}

// Notify sends msg.Text (with its action buttons) and then msg.Attachment.
func (c *capabilities) Notify(_ context.Context, chatID int64, msg membership.Message) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	to := tele.ChatID(chatID)
	if msg.Text != "" {
		var opts []interface{}
		if markup := actionsMarkup(msg.Actions); markup != nil {
			opts = append(opts, markup)
		}
		if _, err := api.Send(to, msg.Text, opts...); err != nil {
			return err
		}
	}
	if msg.Attachment != nil {
		if _, err := api.Send(to, attachment(msg.Attachment)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMember bans userID from groupID.
func (c *capabilities) RemoveMember(_ context.Context, groupID, userID int64) error {
	api, err := c.client()
	if err != nil {
		return err
	}
	return api.Ban(&tele.Chat{ID: groupID}, &tele.ChatMember{User: &tele.User{ID: userID}})
}

// CreateInvite issues a single-use invite link expiring at expires.
func (c *capabilities) CreateInvite(_ context.Context, groupID int64, name string, expires time.Time) (string, error) {
	api, err := c.client()
	if err != nil {
		return "", err
	}
	link, err := api.CreateInviteLink(tele.ChatID(groupID), &tele.ChatInviteLink{
		Name:           name,
		MemberLimit:    1,
		ExpireUnixtime: expires.Unix(),
	})
	if err != nil {
		return "", err
	}
	if link == nil || link.InviteLink == "" {
		return "", errors.New("bot: empty invite link")
	}
	return link.InviteLink, nil
}

// actionsMarkup lays all actions out on one row.
func actionsMarkup(actions []membership.Action) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return nil
	}
	row := make([]keyboard.InlineBtn, 0, len(actions))
	for _, a := range actions {
		row = append(row, keyboard.InlineBtn{Text: a.Label, Unique: a.Unique, Data: a.Payload})
	}
	return keyboard.InlineButtonsRows(row)
}

func attachment(a *membership.Attachment) tele.Sendable {
	file := tele.File{FileID: a.FileID}
	if a.Kind == records.KindDocument {
		return &tele.Document{File: file, Caption: a.Caption}
	}
	return &tele.Photo{File: file, Caption: a.Caption}
}
