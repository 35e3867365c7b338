package family

import (
	"strings"

	"github.com/google/uuid"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

// RelationType distinguishes parent/child links from partnerships.
type RelationType string

const (
	// ParentChild links a parent (PersonA) to a child (PersonB).
	ParentChild RelationType = "parent_child"
	// Partnership links two partners. The pair is unordered in meaning.
	Partnership RelationType = "partnership"
)

// ParseRelationType converts s into a RelationType. Matching is case-insensitive
// and accepts "-" in place of "_".
func ParseRelationType(s string) (RelationType, error) {
	t := RelationType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !t.Valid() {
		return "", kerrors.New(kerrors.ErrCodeInvalidRelationship, "unknown relationship type %q (must be parent_child or partnership)", s)
	}
	return t, nil
}

// Valid reports whether t is a known relationship type.
func (t RelationType) Valid() bool {
	return t == ParentChild || t == Partnership
}

// Relationship is a typed edge between two people of the same family space.
type Relationship struct {
	ID            string       `json:"id" yaml:"id"`
	FamilySpaceID string       `json:"family_space_id,omitempty" yaml:"family_space_id,omitempty"`
	Type          RelationType `json:"type" yaml:"type"`
	PersonAID     string       `json:"person_a_id" yaml:"person_a_id"`
	PersonBID     string       `json:"person_b_id" yaml:"person_b_id"`
}

// NewRelationship creates a relationship with a fresh id.
func NewRelationship(spaceID string, t RelationType, a, b string) Relationship {
	return Relationship{
		ID:            uuid.NewString(),
		FamilySpaceID: spaceID,
		Type:          t,
		PersonAID:     a,
		PersonBID:     b,
	}
}

// Involves reports whether id is one of the endpoints.
func (r Relationship) Involves(id string) bool {
	return r.PersonAID == id || r.PersonBID == id
}

// Other returns the endpoint opposite to id, or "" if id is not an endpoint.
func (r Relationship) Other(id string) string {
	switch id {
	case r.PersonAID:
		return r.PersonBID
	case r.PersonBID:
		return r.PersonAID
	}
	return ""
}

// IsParentChild reports whether r is a parent/child link.
func (r Relationship) IsParentChild() bool { return r.Type == ParentChild }

// IsPartnership reports whether r is a partnership.
func (r Relationship) IsPartnership() bool { return r.Type == Partnership }
