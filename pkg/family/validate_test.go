package family

import (
	"strings"
	"testing"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

func person(id string) Person {
	return Person{ID: id, Status: StatusPlaceholder}
}

func rel(id string, t RelationType, a, b string) Relationship {
	return Relationship{ID: id, Type: t, PersonAID: a, PersonBID: b}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		snap         Snapshot
		wantErrors   []string
		wantWarnings []string
	}{
		{
			name: "Clean",
			snap: Snapshot{
				People: []Person{person("a"), person("b"), person("c")},
				Relationships: []Relationship{
					rel("r1", Partnership, "a", "b"),
					rel("r2", ParentChild, "a", "c"),
				},
			},
		},
		{
			name:       "DuplicatePerson",
			snap:       Snapshot{People: []Person{person("a"), person("a")}},
			wantErrors: []string{"duplicate person id"},
		},
		{
			name:       "BadID",
			snap:       Snapshot{People: []Person{person("a/b")}},
			wantErrors: []string{"path separators"},
		},
		{
			name:       "UnknownStatus",
			snap:       Snapshot{People: []Person{{ID: "a", Status: "zombie"}}},
			wantErrors: []string{"unknown status"},
		},
		{
			name: "DanglingEndpoint",
			snap: Snapshot{
				People:        []Person{person("a")},
				Relationships: []Relationship{rel("r1", ParentChild, "a", "ghost")},
			},
			wantErrors: []string{`unknown person "ghost"`},
		},
		{
			name: "SelfRelationship",
			snap: Snapshot{
				People:        []Person{person("a")},
				Relationships: []Relationship{rel("r1", Partnership, "a", "a")},
			},
			wantErrors: []string{"related to themself"},
		},
		{
			name: "UnknownType",
			snap: Snapshot{
				People:        []Person{person("a"), person("b")},
				Relationships: []Relationship{rel("r1", "sibling", "a", "b")},
			},
			wantErrors: []string{"unknown relationship type"},
		},
		{
			name: "SpaceMismatch",
			snap: Snapshot{
				FamilySpaceID: "s1",
				People:        []Person{{ID: "a", FamilySpaceID: "s2", Status: StatusPlaceholder}},
			},
			wantErrors: []string{`family space "s2"`},
		},
		{
			name: "MultiplePartnerships",
			snap: Snapshot{
				People: []Person{person("a"), person("b"), person("c")},
				Relationships: []Relationship{
					rel("r1", Partnership, "a", "b"),
					rel("r2", Partnership, "a", "c"),
				},
			},
			wantWarnings: []string{"has 2 partnerships"},
		},
		{
			name: "ThreeParents",
			snap: Snapshot{
				People: []Person{person("a"), person("b"), person("c"), person("d")},
				Relationships: []Relationship{
					rel("r1", ParentChild, "a", "d"),
					rel("r2", ParentChild, "b", "d"),
					rel("r3", ParentChild, "c", "d"),
				},
			},
			wantWarnings: []string{"has 3 parents"},
		},
		{
			name: "DuplicatePartnershipReversed",
			snap: Snapshot{
				People: []Person{person("a"), person("b")},
				Relationships: []Relationship{
					rel("r1", Partnership, "a", "b"),
					rel("r2", Partnership, "b", "a"),
				},
			},
			wantWarnings: []string{"duplicates relationship r1"},
		},
		{
			name:         "ActiveWithoutUser",
			snap:         Snapshot{People: []Person{{ID: "a", Status: StatusActive}}},
			wantWarnings: []string{"no user id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Validate(tt.snap)
			assertIssues(t, "errors", rep.Errors(), tt.wantErrors)
			assertIssues(t, "warnings", rep.Warnings(), tt.wantWarnings)
			if rep.HasErrors() != (len(tt.wantErrors) > 0) {
				t.Errorf("HasErrors() = %v", rep.HasErrors())
			}
		})
	}
}

func assertIssues(t *testing.T, kind string, got []Issue, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %d matching %v", kind, got, len(want), want)
	}
	for i, w := range want {
		if !strings.Contains(got[i].Message, w) {
			t.Errorf("%s[%d] = %q, want substring %q", kind, i, got[i].Message, w)
		}
	}
}

func TestReportErr(t *testing.T) {
	var rep Report
	if rep.Err() != nil {
		t.Error("empty report should have nil Err")
	}
	rep.Warn("person a", "looks odd")
	if rep.Err() != nil {
		t.Error("warnings alone should not produce an error")
	}
	rep.add(SeverityError, "person b", "broken")
	err := rep.Err()
	if !kerrors.Is(err, kerrors.ErrCodeInvalidSnapshot) {
		t.Fatalf("Err() = %v, want INVALID_SNAPSHOT", err)
	}
	if !strings.Contains(err.Error(), "person b: broken") {
		t.Errorf("Err() = %q", err.Error())
	}
}
