package family

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

// Status is the lifecycle state of a person.
type Status string

const (
	StatusActive      Status = "active"
	StatusInvited     Status = "invited"
	StatusPlaceholder Status = "placeholder"
	StatusDeceased    Status = "deceased"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusActive, StatusInvited, StatusPlaceholder, StatusDeceased}

// ParseStatus converts s into a Status. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", kerrors.New(kerrors.ErrCodeInvalidStatus, "unknown status %q (must be one of: active, invited, placeholder, deceased)", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInvited, StatusPlaceholder, StatusDeceased:
		return true
	}
	return false
}

// IsLinked reports whether the person is backed by a real account.
// Placeholder and invited people are not.
func (s Status) IsLinked() bool {
	return s == StatusActive || s == StatusDeceased
}

// Date is a calendar date without time of day. It marshals as "YYYY-MM-DD".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, kerrors.Wrap(kerrors.ErrCodeInvalidInput, err, "invalid date %q", s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler (used by JSON and YAML).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Person is a member of a family space.
//
// UserID is empty for people not linked to an account (placeholders and
// invitees). BirthDate is optional.
type Person struct {
	ID            string `json:"id" yaml:"id"`
	FamilySpaceID string `json:"family_space_id,omitempty" yaml:"family_space_id,omitempty"`
	UserID        string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	FirstName     string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Status        Status `json:"status,omitempty" yaml:"status,omitempty"`
	BirthDate     *Date  `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`
}

// NewPerson creates a placeholder person with a fresh id in the given space.
func NewPerson(spaceID, firstName, lastName string) Person {
	return Person{
		ID:            uuid.NewString(),
		FamilySpaceID: spaceID,
		FirstName:     firstName,
		LastName:      lastName,
		Status:        StatusPlaceholder,
	}
}

// DisplayName returns "First Last", whichever part is present, or the id.
func (p Person) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return p.ID
	}
	return name
}

// Activate links the person to an account: placeholder and invited people
// become active with UserID set. Active and deceased people cannot be
// activated.
func (p *Person) Activate(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return kerrors.New(kerrors.ErrCodeInvalidInput, "user id cannot be empty")
	}
	switch p.Status {
	case StatusPlaceholder, StatusInvited, "":
	case StatusActive:
		return kerrors.New(kerrors.ErrCodeConflict, "person %s is already active", p.ID)
	case StatusDeceased:
		return kerrors.New(kerrors.ErrCodeConflict, "person %s is deceased and cannot be activated", p.ID)
	default:
		return kerrors.New(kerrors.ErrCodeInvalidStatus, "person %s has unknown status %q", p.ID, p.Status)
	}
	p.Status = StatusActive
	p.UserID = userID
	return nil
}
