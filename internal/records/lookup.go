package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MemberRef pairs a member with the platform user id it is stored under.
type MemberRef struct {
	UserID int64
	Member Member
}

// FormatNumber renders a member number the way users see it: zero-padded to three digits.
func FormatNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}

// FindByNumber resolves an admin-typed token such as "7", "007" or "#007".
// A member matches when either its bare or its zero-padded number equals the token.
func FindByNumber(doc *Document, token string) (MemberRef, bool) {
	if doc == nil {
		return MemberRef{}, false
	}
	token = strings.TrimLeft(strings.TrimSpace(token), "#")
	if token == "" {
		return MemberRef{}, false
	}
	for key, m := range doc.Members {
		if strconv.Itoa(m.Number) != token && FormatNumber(m.Number) != token {
			continue
		}
		uid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		return MemberRef{UserID: uid, Member: m}, true
	}
	return MemberRef{}, false
}

// FindByUser returns the member stored under userID.
func FindByUser(doc *Document, userID int64) (Member, bool) {
	if doc == nil {
		return Member{}, false
	}
	m, ok := doc.Members[Key(userID)]
	return m, ok
}

// SortedMembers lists members in ascending number order.
func SortedMembers(doc *Document) []MemberRef {
	if doc == nil {
		return nil
	}
	out := make([]MemberRef, 0, len(doc.Members))
	for key, m := range doc.Members {
		uid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, MemberRef{UserID: uid, Member: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member.Number < out[j].Member.Number })
	return out
}
