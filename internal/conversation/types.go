// Package conversation is the per-user dialogue: a menu, the admission
// questionnaire, member reports, messages to the admin and the admin's
// discipline and broadcast flows. Each state has exactly one transition.
package conversation

import (
	"context"
	"errors"

	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"
)

const (
	Menu                  state.State = "menu"
	QuestionnaireSurname  state.State = "questionnaire.surname"
	QuestionnaireVillage  state.State = "questionnaire.village"
	QuestionnairePhoto    state.State = "questionnaire.photo"
	QuestionnaireUnit     state.State = "questionnaire.unit"
	QuestionnaireRank     state.State = "questionnaire.rank"
	QuestionnaireHistory  state.State = "questionnaire.history"
	ReportMemberNumber    state.State = "report.member_number"
	ReportReason          state.State = "report.reason"
	ContactMessage        state.State = "contact.message"
	AdminWarnNumber       state.State = "admin.warn_number"
	AdminBlockNumber      state.State = "admin.block_number"
	AdminBroadcastMessage state.State = "admin.broadcast_message"
)

// Menu selections.
const (
	SelectApply     = "apply"
	SelectReport    = "report"
	SelectContact   = "contact"
	SelectMembers   = "members"
	SelectWarn      = "warn"
	SelectBlock     = "block"
	SelectBroadcast = "broadcast"
)

// ErrUnknownState is returned for a session whose state has no transition.
var ErrUnknownState = errors.New("conversation: unknown state")

// Data is the session-local buffer. It is discarded when the session ends.
type Data struct {
	Applicant    membership.Applicant
	Answers      records.Answers
	ReportTarget int
}

// Session is one user's conversation.
type Session = state.Session[Data]

// InputKind tells what the user sent.
type InputKind int

const (
	InputText InputKind = iota
	InputPhoto
	InputDocument
	InputSelection
)

// Input is one inbound event, already stripped of transport details.
type Input struct {
	Kind      InputKind
	Text      string
	FileID    string
	Selection string
}

// Option is a menu choice rendered as a button.
type Option struct {
	Label string
	Value string
}

// Reply is one outbound message to the user driving the session.
type Reply struct {
	Text    string
	Options []Option
	// Cancelable adds a cancel button.
	Cancelable bool
}

// Step is the result of a transition. When Done is set the session is over
// and Session is idle.
type Step struct {
	Session Session
	Replies []Reply
	Done    bool
}

// Membership is what the machine needs from the membership service.
type Membership interface {
	IsAdmin(userID int64) bool
	Eligibility(ctx context.Context, userID int64) error
	Submit(ctx context.Context, who membership.Applicant, answers records.Answers) (records.Application, error)
	Lookup(ctx context.Context, token string) (records.MemberRef, error)
	Report(ctx context.Context, from membership.Applicant, number int, reason string) error
	Contact(ctx context.Context, from membership.Applicant, text string) error
	Warn(ctx context.Context, token string) (membership.Discipline, error)
	Block(ctx context.Context, token string) (membership.Discipline, error)
	Broadcast(ctx context.Context, text string) error
	Members(ctx context.Context) ([]records.MemberRef, error)
}
