// Package membership implements admission decisions and member discipline on
// top of the records store. Every state change commits before any outbound
// platform call is attempted; outbound failures are logged and degrade.
package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/internal/records"
)

const (
	component = "membership"

	// DefaultCooldown is how long a rejected applicant must wait.
	DefaultCooldown = 24 * time.Hour
	// DefaultInviteTTL bounds the lifetime of a single-use invite link.
	DefaultInviteTTL = 24 * time.Hour

	causeWarn  = "warn"
	causeBlock = "block"
)

// Options configure a Service.
type Options struct {
	AdminID   int64
	GroupID   int64
	Cooldown  time.Duration
	InviteTTL time.Duration
	// Now overrides the clock, for tests.
	Now        func() time.Time
	Registerer prometheus.Registerer
}

// Applicant identifies the platform user behind an application or message.
type Applicant struct {
	UserID   int64
	Username string
}

// Decision describes a committed approve or reject.
type Decision struct {
	Approved    bool
	Application records.Application
	// Member is set on approval.
	Member        records.Member
	CooldownUntil time.Time
	InviteLink    string
	// Notified reports whether the applicant was reached.
	Notified bool
}

// Discipline describes a committed warn or block.
type Discipline struct {
	UserID   int64
	Member   records.Member
	Warnings int
	Expelled bool
	// Removed reports whether the group ban succeeded.
	Removed bool
}

// Service owns every mutation of the membership document.
type Service struct {
	store   *records.Store
	caps    Capabilities
	opts    Options
	metrics *serviceMetrics
}

// New builds a Service. Zero durations fall back to the defaults.
func New(store *records.Store, caps Capabilities, opts Options) *Service {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = DefaultInviteTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   store,
		caps:    caps,
		opts:    opts,
		metrics: newMetrics(opts.Registerer),
	}
}

// IsAdmin reports whether userID is the configured administrator.
func (s *Service) IsAdmin(userID int64) bool {
	return s.opts.AdminID != 0 && userID == s.opts.AdminID
}

// Eligibility reports whether userID may start the questionnaire.
func (s *Service) Eligibility(ctx context.Context, userID int64) error {
	return s.store.View(ctx, func(doc *records.Document) error {
		return s.eligible(doc, userID)
	})
}

func (s *Service) eligible(doc *records.Document, userID int64) error {
	key := records.Key(userID)
	if _, ok := doc.Members[key]; ok {
		return ErrAlreadyMember
	}
	if _, ok := doc.Pending[key]; ok {
		return ErrAlreadyPending
	}
	if until, ok := doc.Cooldowns[key]; ok {
		if now := s.opts.Now(); now.Before(until) {
			return &CooldownError{Until: until, Remaining: until.Sub(now)}
		}
	}
	return nil
}

// Submit stores a completed questionnaire as pending and forwards it to the admin.
func (s *Service) Submit(ctx context.Context, who Applicant, answers records.Answers) (records.Application, error) {
	app := records.Application{
		ID:        uuid.NewString(),
		UserID:    who.UserID,
		Username:  who.Username,
		Answers:   answers,
		Timestamp: s.opts.Now(),
	}
	err := s.store.Mutate(ctx, func(doc *records.Document) error {
		if err := s.eligible(doc, who.UserID); err != nil {
			return err
		}
		doc.Pending[records.Key(who.UserID)] = app
		return nil
	})
	if err != nil {
		return records.Application{}, err
	}
	s.metrics.submitted.Inc()
	logger.Info(ctx, component, "application.submitted",
		slog.Int64("applicant_id", who.UserID),
		slog.String("application_id", app.ID),
	)

	if err := s.notify(ctx, s.opts.AdminID, adminSummary(app)); err == nil && answers.PhotoID != "" {
		_ = s.notify(ctx, s.opts.AdminID, applicantDocument(app))
	}
	return app, nil
}

// Decide approves or rejects the pending application of applicantID.
// ErrNotAdmin and ErrNoPending leave the document untouched.
func (s *Service) Decide(ctx context.Context, adminID, applicantID int64, approve bool) (Decision, error) {
	if !s.IsAdmin(adminID) {
		return Decision{}, ErrNotAdmin
	}
	now := s.opts.Now()
	key := records.Key(applicantID)
	dec := Decision{Approved: approve}

	err := s.store.Mutate(ctx, func(doc *records.Document) error {
		app, ok := doc.Pending[key]
		if !ok {
			return ErrNoPending
		}
		dec.Application = app
		delete(doc.Pending, key)

		if approve {
			doc.Counter++
			dec.Member = records.Member{
				Number:   doc.Counter,
				Username: app.Username,
				Lastname: app.Answers.Lastname,
				Village:  app.Answers.Village,
				Unit:     app.Answers.Unit,
				Rank:     app.Answers.Rank,
				Joined:   now,
			}
			doc.Members[key] = dec.Member
			delete(doc.Cooldowns, key)
			return nil
		}

		doc.Rejected = append(doc.Rejected, records.Rejection{
			ApplicationID: app.ID,
			UserID:        app.UserID,
			Username:      app.Username,
			Answers:       app.Answers,
			RejectedAt:    now,
		})
		dec.CooldownUntil = now.Add(s.opts.Cooldown)
		doc.Cooldowns[key] = dec.CooldownUntil
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	if approve {
		s.metrics.decisions.WithLabelValues(ActionApprove).Inc()
		logger.Info(ctx, component, "decision.approved",
			slog.Int64("applicant_id", applicantID),
			slog.Int("member_number", dec.Member.Number),
		)
		dec.InviteLink = s.invite(ctx, dec.Member)
		dec.Notified = s.notify(ctx, applicantID, welcomeMessage(dec.Member.Number, dec.InviteLink)) == nil
		return dec, nil
	}

	s.metrics.decisions.WithLabelValues(ActionReject).Inc()
	logger.Info(ctx, component, "decision.rejected",
		slog.Int64("applicant_id", applicantID),
		slog.Time("cooldown_until", dec.CooldownUntil),
	)
	dec.Notified = s.notify(ctx, applicantID, rejectionMessage(s.opts.Cooldown)) == nil
	return dec, nil
}

// Warn adds a warning to the member with the given number. The second warning
// removes the member record and bans the user from the group.
func (s *Service) Warn(ctx context.Context, token string) (Discipline, error) {
	var out Discipline
	err := s.store.Mutate(ctx, func(doc *records.Document) error {
		ref, ok := records.FindByNumber(doc, token)
		if !ok {
			return records.ErrMemberNotFound
		}
		ref.Member.Warnings++
		out = Discipline{UserID: ref.UserID, Member: ref.Member, Warnings: ref.Member.Warnings}
		if out.Warnings >= 2 {
			out.Expelled = true
			delete(doc.Members, records.Key(ref.UserID))
			return nil
		}
		doc.Members[records.Key(ref.UserID)] = ref.Member
		return nil
	})
	if err != nil {
		return Discipline{}, err
	}

	s.metrics.warnings.Inc()
	logger.Info(ctx, component, "member.warned",
		slog.Int("member_number", out.Member.Number),
		slog.Int("warnings", out.Warnings),
	)
	if !out.Expelled {
		_ = s.notify(ctx, out.UserID, firstWarningMessage())
		return out, nil
	}
	out.Removed = s.expel(ctx, out, causeWarn)
	return out, nil
}

// Block removes the member with the given number regardless of warnings.
func (s *Service) Block(ctx context.Context, token string) (Discipline, error) {
	var out Discipline
	err := s.store.Mutate(ctx, func(doc *records.Document) error {
		ref, ok := records.FindByNumber(doc, token)
		if !ok {
			return records.ErrMemberNotFound
		}
		out = Discipline{UserID: ref.UserID, Member: ref.Member, Warnings: ref.Member.Warnings, Expelled: true}
		delete(doc.Members, records.Key(ref.UserID))
		return nil
	})
	if err != nil {
		return Discipline{}, err
	}
	out.Removed = s.expel(ctx, out, causeBlock)
	return out, nil
}

// Lookup resolves a member number token.
func (s *Service) Lookup(ctx context.Context, token string) (records.MemberRef, error) {
	var ref records.MemberRef
	err := s.store.View(ctx, func(doc *records.Document) error {
		var ok bool
		if ref, ok = records.FindByNumber(doc, token); !ok {
			return records.ErrMemberNotFound
		}
		return nil
	})
	return ref, err
}

// Members lists members in number order.
func (s *Service) Members(ctx context.Context) ([]records.MemberRef, error) {
	var refs []records.MemberRef
	err := s.store.View(ctx, func(doc *records.Document) error {
		refs = records.SortedMembers(doc)
		return nil
	})
	return refs, err
}

// JoinedMember returns the member record for a user that just entered the group.
func (s *Service) JoinedMember(ctx context.Context, userID int64) (records.Member, bool, error) {
	var (
		m  records.Member
		ok bool
	)
	err := s.store.View(ctx, func(doc *records.Document) error {
		m, ok = records.FindByUser(doc, userID)
		return nil
	})
	return m, ok, err
}

// Report forwards a complaint about member number to the admin.
func (s *Service) Report(ctx context.Context, from Applicant, number int, reason string) error {
	return s.notify(ctx, s.opts.AdminID, reportMessage(from, number, strings.TrimSpace(reason)))
}

// Contact forwards a free-form message to the admin.
func (s *Service) Contact(ctx context.Context, from Applicant, text string) error {
	return s.notify(ctx, s.opts.AdminID, contactMessage(from, strings.TrimSpace(text)))
}

// Broadcast posts text in the managed group.
func (s *Service) Broadcast(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("membership: empty broadcast")
	}
	return s.notify(ctx, s.opts.GroupID, Message{Text: "📢 " + text})
}

func (s *Service) expel(ctx context.Context, d Discipline, cause string) bool {
	s.metrics.expulsions.WithLabelValues(cause).Inc()
	logger.Info(ctx, component, "member.expelled",
		slog.Int("member_number", d.Member.Number),
		slog.String("action", cause),
	)
	if err := s.caps.RemoveMember(ctx, s.opts.GroupID, d.UserID); err != nil {
		s.capabilityFailed(ctx, "remove_member", err, slog.Int64("target_id", d.UserID))
		return false
	}
	_ = s.notify(ctx, d.UserID, expelledMessage(cause))
	return true
}

func (s *Service) invite(ctx context.Context, m records.Member) string {
	name := "member #" + records.FormatNumber(m.Number)
	link, err := s.caps.CreateInvite(ctx, s.opts.GroupID, name, s.opts.Now().Add(s.opts.InviteTTL))
	if err != nil {
		s.capabilityFailed(ctx, "create_invite", err, slog.Int("member_number", m.Number))
		return ""
	}
	return link
}

func (s *Service) notify(ctx context.Context, chatID int64, msg Message) error {
	if err := s.caps.Notify(ctx, chatID, msg); err != nil {
		s.capabilityFailed(ctx, "notify", err, slog.Int64("target_id", chatID))
		return err
	}
	return nil
}

func (s *Service) capabilityFailed(ctx context.Context, capability string, err error, attrs ...slog.Attr) {
	s.metrics.capabilityFailures.WithLabelValues(capability).Inc()
	attrs = append([]slog.Attr{
		slog.String("status", "degraded"),
		slog.String("action", capability),
		logger.Err(err),
	}, attrs...)
	logger.Warn(ctx, component, "capability.failed", attrs...)
}
