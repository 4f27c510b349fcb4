package validation

import (
	"errors"
	"fmt"
	"strings"

	"chatcache/pkg/models"
)

// Rules holds the tunable validation limits applied to incoming entities
// at the transaction boundary. Writes failing validation are the
// "malformed" case the store's skip policy covers.
type Rules struct {
	MaxTextLen    int
	MaxMediaItems int
	MaxNameLen    int
	MemberModes   []string
	FeedItemKinds []string
}

// DefaultRules mirrors the limits the remote service enforces; local
// optimistic writes are checked against the same bounds so they cannot
// produce entities the server would reject.
func DefaultRules() Rules {
	return Rules{
		MaxTextLen:    10000,
		MaxMediaItems: 20,
		MaxNameLen:    200,
		MemberModes:   []string{"", string(models.MemberModeContacts), string(models.MemberModeFriends)},
		FeedItemKinds: []string{string(models.FeedItemDiscussion), string(models.FeedItemMessage)},
	}
}

var rules = DefaultRules()

// SetRules replaces the active rule set (config-driven at startup).
func SetRules(r Rules) { rules = r }

// ValidateUser checks a user write.
func ValidateUser(u models.User) error {
	var errs []string
	if u.ID == "" {
		errs = append(errs, "id is required")
	}
	if rules.MaxNameLen > 0 && len(u.Name) > rules.MaxNameLen {
		errs = append(errs, fmt.Sprintf("name exceeds %d bytes", rules.MaxNameLen))
	}
	return joinErrs(errs)
}

// ValidateMessage checks a message write.
func ValidateMessage(m models.Message) error {
	var errs []string
	if m.ID == "" {
		errs = append(errs, "id is required")
	}
	if m.Discussion == "" {
		errs = append(errs, "discussion_id is required")
	}
	if rules.MaxTextLen > 0 && len(m.Text) > rules.MaxTextLen {
		errs = append(errs, fmt.Sprintf("text exceeds %d bytes", rules.MaxTextLen))
	}
	if rules.MaxMediaItems > 0 && len(m.Media) > rules.MaxMediaItems {
		errs = append(errs, fmt.Sprintf("media exceeds %d items", rules.MaxMediaItems))
	}
	for uid, syms := range m.Reactions {
		if uid == "" {
			errs = append(errs, "reaction with empty user id")
		}
		for sym := range syms {
			if sym == "" {
				errs = append(errs, "reaction with empty symbol")
			}
		}
	}
	return joinErrs(errs)
}

// ValidateDiscussion checks a discussion write.
func ValidateDiscussion(d models.Discussion) error {
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id is required")
	}
	if d.CreatedBy == "" {
		errs = append(errs, "created_by is required")
	}
	if !contains(rules.MemberModes, string(d.MemberMode)) {
		errs = append(errs, fmt.Sprintf("invalid member_mode %q", d.MemberMode))
	}
	// when originally_from is present, both halves of the back-reference
	// are required
	if d.OriginallyFrom != nil {
		if d.OriginallyFrom.DiscussionID == "" {
			errs = append(errs, "originally_from.discussion_id is required")
		}
		if d.OriginallyFrom.MessageID == "" {
			errs = append(errs, "originally_from.message_id is required")
		}
	}
	return joinErrs(errs)
}

// ValidateGroup checks a group write.
func ValidateGroup(g models.Group) error {
	var errs []string
	if g.ID == "" {
		errs = append(errs, "id is required")
	}
	if rules.MaxNameLen > 0 && len(g.Name) > rules.MaxNameLen {
		errs = append(errs, fmt.Sprintf("name exceeds %d bytes", rules.MaxNameLen))
	}
	return joinErrs(errs)
}

// ValidateFeedItem checks a feed item write.
func ValidateFeedItem(fi models.FeedItem) error {
	var errs []string
	if fi.ID == "" {
		errs = append(errs, "id is required")
	}
	if fi.DiscussionID == "" {
		errs = append(errs, "discussion_id is required")
	}
	if !contains(rules.FeedItemKinds, string(fi.Kind)) {
		errs = append(errs, fmt.Sprintf("invalid kind %q", fi.Kind))
	}
	// message-kind items must say which message they point at
	if fi.Kind == models.FeedItemMessage && fi.MessageID == "" {
		errs = append(errs, "message_id is required for message items")
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
