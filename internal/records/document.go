// Package records holds the persisted membership document and the
// single-writer store that every mutation goes through.
package records

import (
	"strconv"
	"time"
)

// Answers are the free-text questionnaire answers plus the attached document.
type Answers struct {
	Lastname  string       `json:"lastname"`
	Village   string       `json:"village"`
	PhotoID   string       `json:"photo_id"`
	PhotoKind DocumentKind `json:"photo_kind,omitempty"`
	Unit      string       `json:"unit"`
	Rank      string       `json:"rank"`
	History   string       `json:"history"`
}

// DocumentKind tells how an attached file was uploaded, so it can be resent the same way.
type DocumentKind string

const (
	KindPhoto    DocumentKind = "photo"
	KindDocument DocumentKind = "document"
)

// Application is a completed questionnaire awaiting an admin decision.
type Application struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Answers   Answers   `json:"answers"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is an admitted applicant. Number is assigned once and never reused.
type Member struct {
	Number   int       `json:"number"`
	Username string    `json:"username,omitempty"`
	Lastname string    `json:"lastname"`
	Village  string    `json:"village"`
	Unit     string    `json:"unit"`
	Rank     string    `json:"rank"`
	Warnings int       `json:"warnings"`
	Joined   time.Time `json:"joined"`
}

// Rejection is an append-only archive entry.
type Rejection struct {
	ApplicationID string    `json:"application_id,omitempty"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	Answers       Answers   `json:"answers"`
	RejectedAt    time.Time `json:"rejected_at"`
}

// Document is the whole persisted state. Maps are keyed by the decimal user id.
type Document struct {
	Members   map[string]Member      `json:"members"`
	Pending   map[string]Application `json:"pending"`
	Rejected  []Rejection            `json:"rejected"`
	Counter   int                    `json:"counter"`
	Cooldowns map[string]time.Time   `json:"cooldowns"`
}

// NewDocument returns the empty document used when nothing was persisted yet.
func NewDocument() *Document {
	doc := &Document{}
	doc.Normalize()
	return doc
}

// Normalize replaces nil collections so callers can write without checks.
func (d *Document) Normalize() {
	if d.Members == nil {
		d.Members = make(map[string]Member)
	}
	if d.Pending == nil {
		d.Pending = make(map[string]Application)
	}
	if d.Rejected == nil {
		d.Rejected = []Rejection{}
	}
	if d.Cooldowns == nil {
		d.Cooldowns = make(map[string]time.Time)
	}
}

// Key renders a user id as a document map key.
func Key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
