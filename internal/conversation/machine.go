package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/state"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"
)

type transition func(ctx context.Context, s Session, in Input) (Step, error)

// Machine drives sessions. It holds no per-user state; callers own the Session values.
type Machine struct {
	svc         Membership
	transitions map[state.State]transition
}

// NewMachine wires one transition per state.
func NewMachine(svc Membership) *Machine {
	m := &Machine{svc: svc}
	m.transitions = map[state.State]transition{
		Menu:                  m.menu,
		QuestionnaireSurname:  m.textAnswer(func(a *records.Answers, v string) { a.Lastname = v }, QuestionnaireVillage, promptVillage),
		QuestionnaireVillage:  m.textAnswer(func(a *records.Answers, v string) { a.Village = v }, QuestionnairePhoto, promptPhoto),
		QuestionnairePhoto:    m.photo,
		QuestionnaireUnit:     m.textAnswer(func(a *records.Answers, v string) { a.Unit = v }, QuestionnaireRank, promptRank),
		QuestionnaireRank:     m.textAnswer(func(a *records.Answers, v string) { a.Rank = v }, QuestionnaireHistory, promptHistory),
		QuestionnaireHistory:  m.history,
		ReportMemberNumber:    m.reportNumber,
		ReportReason:          m.reportReason,
		ContactMessage:        m.contact,
		AdminWarnNumber:       m.warn,
		AdminBlockNumber:      m.block,
		AdminBroadcastMessage: m.broadcast,
	}
	return m
}

// States lists every state the machine can be in besides idle.
func States() []state.State {
	return []state.State{
		Menu,
		QuestionnaireSurname, QuestionnaireVillage, QuestionnairePhoto,
		QuestionnaireUnit, QuestionnaireRank, QuestionnaireHistory,
		ReportMemberNumber, ReportReason,
		ContactMessage,
		AdminWarnNumber, AdminBlockNumber, AdminBroadcastMessage,
	}
}

// Start opens the menu for who.
func (m *Machine) Start(who membership.Applicant) Step {
	s := Session{State: Menu, Data: Data{Applicant: who}}
	return Step{
		Session: s,
		Replies: []Reply{{Text: promptMenu, Options: menuOptions(m.svc.IsAdmin(who.UserID)), Cancelable: true}},
	}
}

// Cancel ends s from any state. The session buffer is dropped.
func (m *Machine) Cancel(ctx context.Context, s Session) Step {
	logger.Debug(ctx, "conversation", "session.cancelled",
		slog.String("state", string(s.State)),
		slog.Int64("user_id", s.Data.Applicant.UserID),
	)
	return done(textCancelled)
}

// Select starts a fresh session and applies a menu selection to it. When arg is
// non-empty it is fed to the branch's first state, so "/warn 7" completes in one step.
func (m *Machine) Select(ctx context.Context, who membership.Applicant, selection, arg string) (Step, error) {
	step, err := m.Handle(ctx, m.Start(who).Session, Input{Kind: InputSelection, Selection: selection})
	if err != nil || step.Done || strings.TrimSpace(arg) == "" {
		return step, err
	}
	return m.Handle(ctx, step.Session, Input{Kind: InputText, Text: arg})
}

// Handle applies in to s.
func (m *Machine) Handle(ctx context.Context, s Session, in Input) (Step, error) {
	fn, ok := m.transitions[s.State]
	if !ok {
		return Step{}, fmt.Errorf("%w: %q", ErrUnknownState, s.State)
	}
	step, err := fn(ctx, s, in)
	if err != nil {
		return Step{}, err
	}
	if step.Done {
		step.Session = Session{}
	}
	logger.Debug(ctx, "conversation", "session.step",
		slog.String("state", string(s.State)),
		slog.String("next_state", string(step.Session.State)),
	)
	return step, nil
}

func (m *Machine) menu(ctx context.Context, s Session, in Input) (Step, error) {
	if in.Kind != InputSelection {
		return stay(s, Reply{Text: promptMenu, Options: menuOptions(m.svc.IsAdmin(s.Data.Applicant.UserID)), Cancelable: true}), nil
	}

	switch in.Selection {
	case SelectApply:
		return m.enterQuestionnaire(ctx, s)
	case SelectReport:
		return next(s, ReportMemberNumber, promptNumber), nil
	case SelectContact:
		return next(s, ContactMessage, promptContact), nil
	}

	if !m.svc.IsAdmin(s.Data.Applicant.UserID) {
		logger.Info(ctx, "conversation", "admin.denied",
			slog.String("status", "denied"),
			slog.String("action", in.Selection),
		)
		return done(textDenied), nil
	}
	switch in.Selection {
	case SelectMembers:
		refs, err := m.svc.Members(ctx)
		if err != nil {
			return Step{}, err
		}
		return done(membership.FormatMemberList(refs)), nil
	case SelectWarn:
		return next(s, AdminWarnNumber, promptNumber), nil
	case SelectBlock:
		return next(s, AdminBlockNumber, promptNumber), nil
	case SelectBroadcast:
		return next(s, AdminBroadcastMessage, promptBroadcast), nil
	}
	return stay(s, Reply{Text: promptMenu, Options: menuOptions(true), Cancelable: true}), nil
}

func (m *Machine) enterQuestionnaire(ctx context.Context, s Session) (Step, error) {
	if text, err := m.ineligible(m.svc.Eligibility(ctx, s.Data.Applicant.UserID)); text != "" || err != nil {
		return done(text), err
	}
	s.Data.Answers = records.Answers{}
	return next(s, QuestionnaireSurname, promptSurname), nil
}

// ineligible maps admission guard errors to a user-facing notice.
func (m *Machine) ineligible(err error) (string, error) {
	var cd *membership.CooldownError
	switch {
	case err == nil:
		return "", nil
	case errors.As(err, &cd):
		return cooldownText(cd), nil
	case errors.Is(err, membership.ErrAlreadyMember):
		return textAlreadyMember, nil
	case errors.Is(err, membership.ErrAlreadyPending):
		return textAlreadyPending, nil
	}
	return "", err
}

func (m *Machine) textAnswer(set func(*records.Answers, string), to state.State, prompt string) transition {
	return func(_ context.Context, s Session, in Input) (Step, error) {
		v, ok := textOf(in)
		if !ok {
			return stay(s, Reply{Text: textNeedText, Cancelable: true}), nil
		}
		set(&s.Data.Answers, v)
		return next(s, to, prompt), nil
	}
}

func (m *Machine) photo(_ context.Context, s Session, in Input) (Step, error) {
	switch {
	case in.Kind == InputPhoto && in.FileID != "":
		s.Data.Answers.PhotoKind = records.KindPhoto
	case in.Kind == InputDocument && in.FileID != "":
		s.Data.Answers.PhotoKind = records.KindDocument
	default:
		return stay(s, Reply{Text: textNeedFile, Cancelable: true}), nil
	}
	s.Data.Answers.PhotoID = in.FileID
	return next(s, QuestionnaireUnit, promptUnit), nil
}

func (m *Machine) history(ctx context.Context, s Session, in Input) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: textNeedText, Cancelable: true}), nil
	}
	s.Data.Answers.History = v
	if _, err := m.svc.Submit(ctx, s.Data.Applicant, s.Data.Answers); err != nil {
		text, err := m.ineligible(err)
		return done(text), err
	}
	return done(textSubmitted), nil
}

func (m *Machine) reportNumber(ctx context.Context, s Session, in Input) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: promptNumber, Cancelable: true}), nil
	}
	ref, err := m.svc.Lookup(ctx, v)
	if errors.Is(err, records.ErrMemberNotFound) {
		return done(textNotFound), nil
	}
	if err != nil {
		return Step{}, err
	}
	s.Data.ReportTarget = ref.Member.Number
	return next(s, ReportReason, promptReason), nil
}

func (m *Machine) reportReason(ctx context.Context, s Session, in Input) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: textNeedText, Cancelable: true}), nil
	}
	if err := m.svc.Report(ctx, s.Data.Applicant, s.Data.ReportTarget, v); err != nil {
		return done(textDeliveryFailed), nil
	}
	return done(textReportSent), nil
}

func (m *Machine) contact(ctx context.Context, s Session, in Input) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: textNeedText, Cancelable: true}), nil
	}
	if err := m.svc.Contact(ctx, s.Data.Applicant, v); err != nil {
		return done(textDeliveryFailed), nil
	}
	return done(textContactSent), nil
}

func (m *Machine) warn(ctx context.Context, s Session, in Input) (Step, error) {
	return m.discipline(ctx, s, in, m.svc.Warn)
}

func (m *Machine) block(ctx context.Context, s Session, in Input) (Step, error) {
	return m.discipline(ctx, s, in, m.svc.Block)
}

func (m *Machine) discipline(ctx context.Context, s Session, in Input, apply func(context.Context, string) (membership.Discipline, error)) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: promptNumber, Cancelable: true}), nil
	}
	d, err := apply(ctx, v)
	if errors.Is(err, records.ErrMemberNotFound) {
		return done(textNotFound), nil
	}
	if err != nil {
		return Step{}, err
	}
	return done(disciplineText(d)), nil
}

func (m *Machine) broadcast(ctx context.Context, s Session, in Input) (Step, error) {
	v, ok := textOf(in)
	if !ok {
		return stay(s, Reply{Text: textNeedText, Cancelable: true}), nil
	}
	if err := m.svc.Broadcast(ctx, v); err != nil {
		return done(textBroadcastFailed), nil
	}
	return done(textBroadcastSent), nil
}

func textOf(in Input) (string, bool) {
	if in.Kind != InputText {
		return "", false
	}
	v := strings.TrimSpace(in.Text)
	return v, v != ""
}

func next(s Session, to state.State, prompt string) Step {
	s.State = to
	return Step{Session: s, Replies: []Reply{{Text: prompt, Cancelable: true}}}
}

func stay(s Session, r Reply) Step {
	return Step{Session: s, Replies: []Reply{r}}
}

func done(text string) Step {
	var replies []Reply
	if text != "" {
		replies = []Reply{{Text: text}}
	}
	return Step{Done: true, Replies: replies}
}
