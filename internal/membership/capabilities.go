package membership

import (
	"context"
	"time"

	"github.com/m3rciful/gatebot/internal/records"
)

// Action is an inline button attached to a notification.
type Action struct {
	Label   string
	Unique  string
	Payload string
}

// Attachment references an already uploaded file.
type Attachment struct {
	FileID  string
	Kind    records.DocumentKind
	Caption string
}

// Message is an outbound notification. Attachment, when set, is sent as a
// separate message after Text.
type Message struct {
	Text       string
	Attachment *Attachment
	Actions    []Action
}

// Notifier delivers messages to an arbitrary chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, msg Message) error
}

// GroupModerator removes users from the managed group.
type GroupModerator interface {
	RemoveMember(ctx context.Context, groupID, userID int64) error
}

// InviteIssuer creates invitation links into the managed group.
type InviteIssuer interface {
	CreateInvite(ctx context.Context, groupID int64, name string, expires time.Time) (string, error)
}

// Capabilities bundles every outbound platform call the service makes.
type Capabilities interface {
	Notifier
	GroupModerator
	InviteIssuer
}
