package membership

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/gatebot/internal/records"
)

// Callback uniques carried by the approve/reject buttons of an admin summary.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

const welcomeRules = `Welcome to the group 🫡

House rules:
• Mutual respect at all times
• Respectful language only
• No sharing identifying details of other members
• No screenshots or forwarding outside the group
• Political topics with courtesy and responsibility
• Violations: first a warning, on the second you are removed

Your member number: #%s`

// FormatRemaining renders a positive duration as whole hours and minutes, rounded down.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	mins := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%d hours and %d minutes", hours, mins)
}

func displayUsername(username string) string {
	if username == "" {
		return "none"
	}
	return "@" + username
}

func adminSummary(app records.Application) Message {
	a := app.Answers
	var b strings.Builder
	b.WriteString("🔔 New membership application\n\n")
	fmt.Fprintf(&b, "👤 Telegram: %s (ID: %d)\n", displayUsername(app.Username), app.UserID)
	fmt.Fprintf(&b, "Lastname: %s\n", a.Lastname)
	fmt.Fprintf(&b, "Village: %s\n", a.Village)
	fmt.Fprintf(&b, "Unit: %s\n", a.Unit)
	fmt.Fprintf(&b, "Rank: %s\n", a.Rank)
	fmt.Fprintf(&b, "History: %s", a.History)

	payload := records.Key(app.UserID)
	return Message{
		Text: b.String(),
		Actions: []Action{
			{Label: "✅ Approve", Unique: ActionApprove, Payload: payload},
			{Label: "❌ Reject", Unique: ActionReject, Payload: payload},
		},
	}
}

func applicantDocument(app records.Application) Message {
	return Message{Attachment: &Attachment{
		FileID:  app.Answers.PhotoID,
		Kind:    app.Answers.PhotoKind,
		Caption: fmt.Sprintf("Applicant document (ID: %d)", app.UserID),
	}}
}

func welcomeMessage(number int, inviteLink string) Message {
	text := "🎉 Your application was approved!\n\n" + fmt.Sprintf(welcomeRules, records.FormatNumber(number))
	if inviteLink != "" {
		text += "\n\nJoin the group (single use): " + inviteLink
	} else {
		text += "\n\nAn admin will add you to the group shortly."
	}
	return Message{Text: text}
}

func rejectionMessage(cooldown time.Duration) Message {
	return Message{Text: fmt.Sprintf(
		"❌ Your application was not approved this time.\nYou may apply again in %d hours.",
		int(cooldown/time.Hour),
	)}
}

func firstWarningMessage() Message {
	return Message{Text: "⚠️ You received a first warning for breaking the group rules.\nOn the next violation you will be removed from the group."}
}

func expelledMessage(cause string) Message {
	if cause == causeBlock {
		return Message{Text: "🚫 You were removed from the group by an admin."}
	}
	return Message{Text: "❌ You were removed from the group for repeated rule violations."}
}

func reportMessage(from Applicant, number int, reason string) Message {
	return Message{Text: fmt.Sprintf("🚩 Report from %s (ID: %d) about member #%s:\n%s",
		displayUsername(from.Username), from.UserID, records.FormatNumber(number), reason)}
}

func contactMessage(from Applicant, text string) Message {
	return Message{Text: fmt.Sprintf("✉️ Message from %s (ID: %d):\n%s",
		displayUsername(from.Username), from.UserID, text)}
}

// GreetingText is posted in the group when an admitted member joins.
func GreetingText(m records.Member) string {
	return fmt.Sprintf("Welcome #%s! 🫡\nYou received a private message with the group rules.", records.FormatNumber(m.Number))
}

// FormatMemberList renders the admin member listing.
func FormatMemberList(refs []records.MemberRef) string {
	if len(refs) == 0 {
		return "No members yet"
	}
	lines := make([]string, 0, len(refs)+1)
	lines = append(lines, "📋 Members:\n")
	for _, ref := range refs {
		m := ref.Member
		line := fmt.Sprintf("#%s | %s | %s | %s", records.FormatNumber(m.Number), m.Lastname, m.Village, m.Rank)
		if m.Warnings > 0 {
			line += fmt.Sprintf(" ⚠️×%d", m.Warnings)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
