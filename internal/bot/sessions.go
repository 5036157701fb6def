package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/gatebot/core/logger"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/conversation"
	"github.com/m3rciful/gatebot/internal/membership"

	tele "gopkg.in/telebot.v4"
)

const (
	// sessionIdle is how long an untouched conversation survives.
	sessionIdle   = 30 * time.Minute
	sweepEvery    = time.Minute
	optionsPerRow = 2

	menuUnique = "menu"

	textFailed = "⚠️ Something went wrong. Please try again."
)

// dialogs connects the conversation machine to per-user sessions.
type dialogs struct {
	machine  *conversation.Machine
	sessions *state.Manager[conversation.Data]
}

func newDialogs(machine *conversation.Machine) *dialogs {
	return &dialogs{machine: machine, sessions: state.NewManager[conversation.Data]()}
}

// InProgress reports whether userID has an open conversation.
func (d *dialogs) InProgress(userID int64) bool {
	return d.sessions.InProgress(userID)
}

// Handle feeds an inbound message to the sender's conversation.
func (d *dialogs) Handle(c tele.Context) error {
	who, ok := applicant(c)
	if !ok {
		return nil
	}
	unlock := d.sessions.Lock(who.UserID)
	defer unlock()

	s, ok := d.sessions.Get(who.UserID)
	if !ok {
		return nil
	}
	s.Data.Applicant = who
	ctx := tghelpers.BuildContext(c)
	step, err := d.machine.Handle(ctx, s, inputOf(c.Message()))
	return d.apply(ctx, c, who.UserID, step, err)
}

// Start opens the menu, replacing any conversation in progress.
func (d *dialogs) Start(c tele.Context) error {
	who, ok := applicant(c)
	if !ok {
		return nil
	}
	unlock := d.sessions.Lock(who.UserID)
	defer unlock()
	return d.apply(tghelpers.BuildContext(c), c, who.UserID, d.machine.Start(who), nil)
}

// Select runs a menu selection on a fresh session. arg, when set, answers the
// branch's first question.
func (d *dialogs) Select(c tele.Context, selection, arg string) error {
	who, ok := applicant(c)
	if !ok {
		return nil
	}
	unlock := d.sessions.Lock(who.UserID)
	defer unlock()
	ctx := tghelpers.BuildContext(c)
	step, err := d.machine.Select(ctx, who, selection, arg)
	return d.apply(ctx, c, who.UserID, step, err)
}

// Cancel ends the sender's conversation, if any.
func (d *dialogs) Cancel(c tele.Context) error {
	who, ok := applicant(c)
	if !ok {
		return nil
	}
	unlock := d.sessions.Lock(who.UserID)
	defer unlock()
	s, _ := d.sessions.Get(who.UserID)
	ctx := tghelpers.BuildContext(c)
	return d.apply(ctx, c, who.UserID, d.machine.Cancel(ctx, s), nil)
}

// Sweep drops conversations idle for longer than sessionIdle until ctx ends.
func (d *dialogs) Sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.sessions.Expire(sessionIdle); n > 0 {
				logger.Info(ctx, "conversation", "session.expired", slog.Int("count", n))
			}
		}
	}
}

// apply stores the step's session and sends its replies. A machine error keeps
// the previous session so the user can retry.
func (d *dialogs) apply(ctx context.Context, c tele.Context, userID int64, step conversation.Step, err error) error {
	if err != nil {
		logger.Error(ctx, "conversation", "session.failed", logger.Err(err))
		return tghelpers.SendText(c, textFailed)
	}
	if step.Done {
		d.sessions.Clear(userID)
	} else {
		d.sessions.Set(userID, step.Session)
	}
	return tghelpers.SendSequence(c, render(step.Replies)...)
}

func render(replies []conversation.Reply) []tghelpers.Outgoing {
	out := make([]tghelpers.Outgoing, 0, len(replies))
	for _, r := range replies {
		msg := tghelpers.Outgoing{Text: r.Text}
		var rows [][]keyboard.InlineBtn
		if len(r.Options) > 0 {
			buttons := make([]keyboard.InlineBtn, 0, len(r.Options))
			for _, o := range r.Options {
				buttons = append(buttons, keyboard.InlineBtn{Text: o.Label, Unique: menuUnique, Data: o.Value})
			}
			rows = keyboard.Chunk(buttons, optionsPerRow)
		}
		if r.Cancelable {
			rows = append(rows, []keyboard.InlineBtn{keyboard.CancelBtn()})
		}
		if len(rows) > 0 {
			msg.Markup = keyboard.InlineButtonsRows(rows...)
		}
		out = append(out, msg)
	}
	return out
}

func applicant(c tele.Context) (membership.Applicant, bool) {
	u := c.Sender()
	if u == nil {
		return membership.Applicant{}, false
	}
	return membership.Applicant{UserID: u.ID, Username: u.Username}, true
}

func inputOf(m *tele.Message) conversation.Input {
	switch {
	case m == nil:
		return conversation.Input{Kind: conversation.InputText}
	case m.Photo != nil:
		return conversation.Input{Kind: conversation.InputPhoto, FileID: m.Photo.FileID}
	case m.Document != nil:
		return conversation.Input{Kind: conversation.InputDocument, FileID: m.Document.FileID}
	}
	return conversation.Input{Kind: conversation.InputText, Text: m.Text}
}
