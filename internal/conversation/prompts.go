package conversation

import (
	"fmt"

	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"
)

const (
	promptMenu      = "Hello! 👋\nChoose an option:"
	promptSurname   = "This is the admission process for the group.\nPlease answer the following questions. Everything stays confidential.\n\n1️⃣ What is your last name?"
	promptVillage   = "2️⃣ Which village or town are you from?"
	promptPhoto     = "3️⃣ Please upload a photo of your service card, combat certificate or discharge certificate.\n\n✅ You may hide: personal number, first name, picture\n✅ Must stay visible: last name, document type"
	promptUnit      = "4️⃣ Which unit do/did you serve in?"
	promptRank      = "5️⃣ What is your current or last rank?"
	promptHistory   = "6️⃣ Who signed the agreement on Druze enlistment in the IDF, and why did he agree to it?"
	promptNumber    = "Enter the member number (for example 007):"
	promptReason    = "Describe the problem:"
	promptContact   = "Write your message to the admin:"
	promptBroadcast = "Write the message to post in the group:"

	textNeedText        = "⚠️ Please answer with text."
	textNeedFile        = "⚠️ Please upload a photo or a file."
	textSubmitted       = "✅ Your application was sent to the admin for review.\nYou will be notified soon. Thank you for your patience!"
	textAlreadyMember   = "You are already a member of the group."
	textAlreadyPending  = "Your application is already awaiting review."
	textNotFound        = "❌ Member not found"
	textDenied          = "⛔ This action is available to the admin only."
	textReportSent      = "✅ Your report was sent to the admin."
	textContactSent     = "✅ Your message was sent to the admin."
	textDeliveryFailed  = "⚠️ The message could not be delivered right now. Please try again later."
	textBroadcastSent   = "📢 The message was posted in the group."
	textBroadcastFailed = "⚠️ Posting to the group failed. Check that the bot can write there."
	textCancelled       = "❌ Cancelled. Send /start to begin again."
)

func cooldownText(err *membership.CooldownError) string {
	return fmt.Sprintf("❌ Your application was recently rejected.\nYou can try again in %s.", membership.FormatRemaining(err.Remaining))
}

func disciplineText(d membership.Discipline) string {
	number := records.FormatNumber(d.Member.Number)
	if !d.Expelled {
		return fmt.Sprintf("⚠️ First warning sent to member #%s", number)
	}
	text := fmt.Sprintf("🚫 Member #%s was removed from the group", number)
	if !d.Removed {
		text += "\n⚠️ The group ban failed; remove the user manually."
	}
	return text
}

func menuOptions(admin bool) []Option {
	opts := []Option{
		{Label: "📝 Apply to join", Value: SelectApply},
		{Label: "🚩 Report a member", Value: SelectReport},
		{Label: "✉️ Contact the admin", Value: SelectContact},
	}
	if admin {
		opts = append(opts,
			Option{Label: "📋 Members", Value: SelectMembers},
			Option{Label: "⚠️ Warn", Value: SelectWarn},
			Option{Label: "🚫 Block", Value: SelectBlock},
			Option{Label: "📢 Broadcast", Value: SelectBroadcast},
		)
	}
	return opts
}
