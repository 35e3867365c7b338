package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/observability"
)

// ErrNotFound is the cause of every not-found error returned by a Store.
var ErrNotFound = errors.New("not found")

// Space summarises one family space.
type Space struct {
	ID            string    `json:"id"`
	People        int       `json:"people"`
	Relationships int       `json:"relationships"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists family spaces.
type Store interface {
	// PutSnapshot replaces every person and relationship of
	// s.FamilySpaceID, creating the space if needed.
	PutSnapshot(ctx context.Context, s family.Snapshot) error
	// Snapshot loads a whole space. People come back in stored order.
	Snapshot(ctx context.Context, spaceID string) (family.Snapshot, error)
	// ListSpaces returns every space ordered by id.
	ListSpaces(ctx context.Context) ([]Space, error)

	// UpsertPerson creates or updates a person. New people are appended
	// after the existing ones; updates keep their position.
	UpsertPerson(ctx context.Context, p family.Person) error
	// UpsertRelationship creates or updates a relationship. Both
	// endpoints must already exist in the same space.
	UpsertRelationship(ctx context.Context, r family.Relationship) error
	Person(ctx context.Context, spaceID, personID string) (family.Person, error)
	// ActivatePerson links a placeholder or invited person to an account.
	ActivatePerson(ctx context.Context, spaceID, personID, userID string) (family.Person, error)

	Close() error
}

func spaceNotFound(spaceID string) error {
	return kerrors.Wrap(kerrors.ErrCodeSpaceNotFound, ErrNotFound, "family space %s", spaceID)
}

func personNotFound(spaceID, personID string) error {
	return kerrors.Wrap(kerrors.ErrCodePersonNotFound, ErrNotFound, "person %s in family space %s", personID, spaceID)
}

// prepareSnapshot validates s for storage and returns a defaulted copy.
func prepareSnapshot(s family.Snapshot) (family.Snapshot, error) {
	if err := kerrors.ValidateID("family space", s.FamilySpaceID); err != nil {
		return family.Snapshot{}, err
	}
	out := s.Clone()
	out.ApplyDefaults()
	if err := family.Validate(out).Err(); err != nil {
		return family.Snapshot{}, err
	}
	return out, nil
}

// preparePerson validates p for an upsert and returns a defaulted copy.
func preparePerson(p family.Person) (family.Person, error) {
	if err := kerrors.ValidateID("family space", p.FamilySpaceID); err != nil {
		return p, err
	}
	if err := kerrors.ValidateID("person", p.ID); err != nil {
		return p, err
	}
	if p.Status == "" {
		p.Status = family.StatusPlaceholder
	}
	if !p.Status.Valid() {
		return p, kerrors.New(kerrors.ErrCodeInvalidStatus, "unknown status %q", p.Status)
	}
	return p, nil
}

// prepareRelationship validates r for an upsert. Endpoint existence is
// checked by each backend.
func prepareRelationship(r family.Relationship) error {
	if err := kerrors.ValidateID("family space", r.FamilySpaceID); err != nil {
		return err
	}
	if err := kerrors.ValidateID("relationship", r.ID); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return kerrors.New(kerrors.ErrCodeInvalidRelationship, "unknown relationship type %q", r.Type)
	}
	if r.PersonAID == r.PersonBID {
		return kerrors.New(kerrors.ErrCodeInvalidRelationship, "person %s cannot be related to themself", r.PersonAID)
	}
	return nil
}

func danglingEndpoint(r family.Relationship, personID string) error {
	return kerrors.Wrap(kerrors.ErrCodeInvalidRelationship, personNotFound(r.FamilySpaceID, personID),
		"relationship %s references unknown person %s", r.ID, personID)
}

// observe reports one storage operation to the registered hooks.
func observe(ctx context.Context, op, spaceID string, start time.Time, err error) {
	observability.Store().OnQuery(ctx, op, spaceID, time.Since(start), err)
}

// storageErr wraps a backend failure with the STORAGE code unless it is
// already coded.
func storageErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if kerrors.GetCode(err) != "" {
		return err
	}
	return kerrors.Wrap(kerrors.ErrCodeStorage, err, format, args...)
}

// Driver names accepted by [Open].
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config selects and configures a backend.
type Config struct {
	Driver string
	// DSN is the SQLite path or DSN.
	DSN           string
	MongoURI      string
	MongoDatabase string
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "":
		s, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q (must be memory, sqlite or mongo)", cfg.Driver)
}
