package family

import (
	"fmt"
	"strings"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

// Severity classifies a validation issue.
type Severity string

const (
	// SeverityError marks data the store refuses to accept.
	SeverityError Severity = "error"
	// SeverityWarning marks data that is accepted but may render oddly.
	SeverityWarning Severity = "warning"
)

// Issue is one problem found by [Validate].
type Issue struct {
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Subject, i.Message)
}

// Report collects validation issues in discovery order.
type Report struct {
	Issues []Issue `json:"issues"`
}

func (r *Report) add(sev Severity, subject, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

// Warn appends a warning. Used by callers layering extra checks on a report.
func (r *Report) Warn(subject, format string, args ...any) {
	r.add(SeverityWarning, subject, format, args...)
}

// Errors returns only error-severity issues.
func (r Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns only warning-severity issues.
func (r Report) Warnings() []Issue { return r.filter(SeverityWarning) }

// HasErrors reports whether any error-severity issue exists.
func (r Report) HasErrors() bool { return len(r.Errors()) > 0 }

// Err returns an INVALID_SNAPSHOT error summarising error-severity issues,
// or nil if there are none.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Subject + ": " + e.Message
	}
	return kerrors.New(kerrors.ErrCodeInvalidSnapshot, "%d invalid entries: %s", len(errs), strings.Join(msgs, "; "))
}

func (r Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks s for structural problems.
//
// Errors: empty or malformed ids, duplicate ids, unknown statuses or
// relationship types, entries scoped to another family space, relationships
// pointing at unknown people, and self relationships.
//
// Warnings: more than one partnership per person (only the first is used),
// more than two parents, and duplicate relationships.
func Validate(s Snapshot) Report {
	var rep Report

	people := make(map[string]bool, len(s.People))
	for _, p := range s.People {
		subject := "person " + p.ID
		if err := kerrors.ValidateID("person", p.ID); err != nil {
			rep.add(SeverityError, subject, "%s", kerrors.UserMessage(err))
			continue
		}
		if people[p.ID] {
			rep.add(SeverityError, subject, "duplicate person id")
			continue
		}
		people[p.ID] = true
		if !p.Status.Valid() {
			rep.add(SeverityError, subject, "unknown status %q", p.Status)
		}
		if s.FamilySpaceID != "" && p.FamilySpaceID != s.FamilySpaceID {
			rep.add(SeverityError, subject, "belongs to family space %q, not %q", p.FamilySpaceID, s.FamilySpaceID)
		}
		if p.Status == StatusActive && p.UserID == "" {
			rep.add(SeverityWarning, subject, "active person has no user id")
		}
	}

	relIDs := make(map[string]bool, len(s.Relationships))
	seen := make(map[string]string)
	partnerships := make(map[string]int)
	parents := make(map[string]int)

	for _, r := range s.Relationships {
		subject := "relationship " + r.ID
		if err := kerrors.ValidateID("relationship", r.ID); err != nil {
			rep.add(SeverityError, subject, "%s", kerrors.UserMessage(err))
			continue
		}
		if relIDs[r.ID] {
			rep.add(SeverityError, subject, "duplicate relationship id")
			continue
		}
		relIDs[r.ID] = true

		if !r.Type.Valid() {
			rep.add(SeverityError, subject, "unknown relationship type %q", r.Type)
			continue
		}
		if s.FamilySpaceID != "" && r.FamilySpaceID != s.FamilySpaceID {
			rep.add(SeverityError, subject, "belongs to family space %q, not %q", r.FamilySpaceID, s.FamilySpaceID)
		}
		if !people[r.PersonAID] {
			rep.add(SeverityError, subject, "unknown person %q", r.PersonAID)
		}
		if !people[r.PersonBID] {
			rep.add(SeverityError, subject, "unknown person %q", r.PersonBID)
		}
		if r.PersonAID == r.PersonBID {
			rep.add(SeverityError, subject, "person %q is related to themself", r.PersonAID)
			continue
		}

		key := relationshipKey(r)
		if prev, ok := seen[key]; ok {
			rep.add(SeverityWarning, subject, "duplicates relationship %s", prev)
			continue
		}
		seen[key] = r.ID

		switch r.Type {
		case Partnership:
			partnerships[r.PersonAID]++
			partnerships[r.PersonBID]++
		case ParentChild:
			parents[r.PersonBID]++
		}
	}

	for _, p := range s.People {
		if n := partnerships[p.ID]; n > 1 {
			rep.add(SeverityWarning, "person "+p.ID, "has %d partnerships; only the first is used", n)
			partnerships[p.ID] = 0
		}
		if n := parents[p.ID]; n > 2 {
			rep.add(SeverityWarning, "person "+p.ID, "has %d parents", n)
			parents[p.ID] = 0
		}
	}

	return rep
}

// relationshipKey identifies a relationship by meaning: partnerships are
// unordered, parent/child links are directed.
func relationshipKey(r Relationship) string {
	a, b := r.PersonAID, r.PersonBID
	if r.Type == Partnership && b < a {
		a, b = b, a
	}
	return string(r.Type) + "\x00" + a + "\x00" + b
}
