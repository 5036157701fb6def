package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/gatebot/core/telegram/helpers"
	"github.com/m3rciful/gatebot/internal/conversation"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"

	tele "gopkg.in/telebot.v4"
)

const (
	textDenied       = "⛔ This action is available to the admin only."
	textUseMenu      = "Send /start to open the menu."
	textNotHandled   = "⚠️ Application not found (maybe already handled)"
	textUnreachable  = "⚠️ The applicant could not be notified."
	textInviteFailed = "⚠️ No invite link could be created; add the member manually."
)

// privateOnly drops updates that do not come from a private chat.
func privateOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}
		return next(c)
	}
}

func (a *App) handleStart(c tele.Context) error {
	return a.dialogs.Start(c)
}

func (a *App) handleCancel(c tele.Context) error {
	return a.dialogs.Cancel(c)
}

// selectCommand maps an admin command onto the matching menu selection. The
// command payload, e.g. "7" in "/warn 7", answers the first question.
func (a *App) selectCommand(selection string) tele.HandlerFunc {
	return func(c tele.Context) error {
		var arg string
		if m := c.Message(); m != nil {
			arg = strings.TrimSpace(m.Payload)
		}
		return a.dialogs.Select(c, selection, arg)
	}
}

func (a *App) handleMenu(c tele.Context) error {
	selection := callbacks.Payload(c)
	if selection == "" {
		return a.dialogs.Start(c)
	}
	return a.dialogs.Select(c, selection, "")
}

func (a *App) handleCancelButton(c tele.Context) error {
	_ = c.Respond(&tele.CallbackResponse{Text: "Cancelled"})
	return a.dialogs.Cancel(c)
}

// handleDecision serves the approve and reject buttons on an application summary.
func (a *App) handleDecision(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		adminID := tghelpers.SenderID(c)
		applicantID, err := strconv.ParseInt(callbacks.Payload(c), 10, 64)
		if err != nil {
			logger.Warn(ctx, "tg", "decision.bad_payload", slog.String("payload", logger.SanitizeLimit(callbacks.Payload(c), 64)))
			return c.Respond(&tele.CallbackResponse{Text: textNotHandled})
		}

		dec, err := a.service.Decide(ctx, adminID, applicantID, approve)
		switch {
		case errors.Is(err, membership.ErrNotAdmin):
			return nil
		case errors.Is(err, membership.ErrNoPending):
			return tghelpers.EditOrSend(c, textNotHandled)
		case err != nil:
			logger.Error(ctx, "membership", "decision.failed", logger.Err(err))
			return c.Respond(&tele.CallbackResponse{Text: textFailed, ShowAlert: true})
		}
		return tghelpers.EditOrSend(c, decisionSummary(dec))
	}
}

func decisionSummary(dec membership.Decision) string {
	lastname := dec.Application.Answers.Lastname
	var text string
	if dec.Approved {
		text = fmt.Sprintf("✅ %s approved: member #%s", lastname, records.FormatNumber(dec.Member.Number))
		if dec.InviteLink == "" {
			text += "\n" + textInviteFailed
		}
	} else {
		text = fmt.Sprintf("❌ %s rejected", lastname)
	}
	if !dec.Notified {
		text += "\n" + textUnreachable
	}
	return text
}

// handleUserJoined greets approved members when they enter the group.
func (a *App) handleUserJoined(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || (a.cfg.Telegram.GroupID != 0 && chat.ID != a.cfg.Telegram.GroupID) {
		return nil
	}
	m := c.Message()
	if m == nil {
		return nil
	}
	joined := m.UsersJoined
	if len(joined) == 0 && m.UserJoined != nil {
		joined = []tele.User{*m.UserJoined}
	}

	ctx := tghelpers.BuildContext(c)
	var greetings []tghelpers.Outgoing
	for _, u := range joined {
		member, ok, err := a.service.JoinedMember(ctx, u.ID)
		if err != nil {
			logger.Error(ctx, "membership", "joined.lookup_failed", logger.Err(err))
			continue
		}
		if ok {
			greetings = append(greetings, tghelpers.Outgoing{Text: membership.GreetingText(member)})
		}
	}
	return tghelpers.SendSequence(c, greetings...)
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, textUseMenu)
}

func (a *App) handleAdminReject(c tele.Context) error {
	return tghelpers.SendText(c, textDenied)
}

// commandSelections binds the admin commands to their menu branches.
var commandSelections = []struct {
	name, selection, description string
}{
	{"/members", conversation.SelectMembers, "List members"},
	{"/warn", conversation.SelectWarn, "Warn a member: /warn 007"},
	{"/block", conversation.SelectBlock, "Remove a member: /block 007"},
	{"/broadcast", conversation.SelectBroadcast, "Post to the group: /broadcast text"},
}
