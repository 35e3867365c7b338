package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/knitfamily/knit/pkg/family"
)

// Schema creates the SQLite tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS spaces (
	id         TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
	space_id   TEXT NOT NULL REFERENCES spaces(id),
	id         TEXT NOT NULL,
	position   INTEGER NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	birth_date TEXT,
	PRIMARY KEY (space_id, id)
);

CREATE TABLE IF NOT EXISTS relationships (
	space_id    TEXT NOT NULL REFERENCES spaces(id),
	id          TEXT NOT NULL,
	position    INTEGER NOT NULL,
	type        TEXT NOT NULL CHECK (type IN ('parent_child', 'partnership')),
	person_a_id TEXT NOT NULL,
	person_b_id TEXT NOT NULL,
	PRIMARY KEY (space_id, id),
	FOREIGN KEY (space_id, person_a_id) REFERENCES people(space_id, id),
	FOREIGN KEY (space_id, person_b_id) REFERENCES people(space_id, id)
);

CREATE INDEX IF NOT EXISTS idx_people_position ON people(space_id, position);
CREATE INDEX IF NOT EXISTS idx_relationships_position ON relationships(space_id, position);
`

// SQLiteStore persists spaces in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dsn and applies
// [Schema]. Use ":memory:" for a throwaway database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	// One connection serialises writers; with ":memory:" it also keeps
	// every query on the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) touch(ctx context.Context, tx *sql.Tx, spaceID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO spaces (id, updated_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		spaceID, s.timestamp())
	return err
}

// withTx runs fn in a transaction, committing if it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap family.Snapshot) (err error) {
	defer func(start time.Time, spaceID string) { observe(ctx, "put_snapshot", spaceID, start, err) }(time.Now(), snap.FamilySpaceID)

	snap, err = prepareSnapshot(snap)
	if err != nil {
		return err
	}
	spaceID := snap.FamilySpaceID

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, spaceID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE space_id = ?`, spaceID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM people WHERE space_id = ?`, spaceID); err != nil {
			return err
		}
		for i, p := range snap.People {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO people (space_id, id, position, user_id, first_name, last_name, status, birth_date)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				spaceID, p.ID, i, p.UserID, p.FirstName, p.LastName, string(p.Status), birthDate(p.BirthDate)); err != nil {
				return fmt.Errorf("insert person %s: %w", p.ID, err)
			}
		}
		for i, r := range snap.Relationships {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO relationships (space_id, id, position, type, person_a_id, person_b_id)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				spaceID, r.ID, i, string(r.Type), r.PersonAID, r.PersonBID); err != nil {
				return fmt.Errorf("insert relationship %s: %w", r.ID, err)
			}
		}
		return nil
	})
	return storageErr(err, "store snapshot %s", spaceID)
}

func (s *SQLiteStore) Snapshot(ctx context.Context, spaceID string) (snap family.Snapshot, err error) {
	defer func(start time.Time) { observe(ctx, "snapshot", spaceID, start, err) }(time.Now())

	ok, err := spaceExists(ctx, s.db, spaceID)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load space %s", spaceID)
	}
	if !ok {
		return family.Snapshot{}, spaceNotFound(spaceID)
	}

	snap = family.Snapshot{
		FamilySpaceID: spaceID,
		People:        []family.Person{},
		Relationships: []family.Relationship{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, first_name, last_name, status, birth_date
		 FROM people WHERE space_id = ? ORDER BY position`, spaceID)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load people of %s", spaceID)
	}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return family.Snapshot{}, storageErr(err, "scan person")
		}
		p.FamilySpaceID = spaceID
		snap.People = append(snap.People, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return family.Snapshot{}, storageErr(err, "load people of %s", spaceID)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, type, person_a_id, person_b_id
		 FROM relationships WHERE space_id = ? ORDER BY position`, spaceID)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load relationships of %s", spaceID)
	}
	defer rows.Close()
	for rows.Next() {
		r := family.Relationship{FamilySpaceID: spaceID}
		var typ string
		if err := rows.Scan(&r.ID, &typ, &r.PersonAID, &r.PersonBID); err != nil {
			return family.Snapshot{}, storageErr(err, "scan relationship")
		}
		r.Type = family.RelationType(typ)
		snap.Relationships = append(snap.Relationships, r)
	}
	if err := rows.Err(); err != nil {
		return family.Snapshot{}, storageErr(err, "load relationships of %s", spaceID)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSpaces(ctx context.Context) (spaces []Space, err error) {
	defer func(start time.Time) { observe(ctx, "list_spaces", "", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.updated_at,
		       (SELECT COUNT(*) FROM people p WHERE p.space_id = s.id),
		       (SELECT COUNT(*) FROM relationships r WHERE r.space_id = s.id)
		FROM spaces s ORDER BY s.id`)
	if err != nil {
		return nil, storageErr(err, "list spaces")
	}
	defer rows.Close()

	spaces = []Space{}
	for rows.Next() {
		var sp Space
		var updated string
		if err := rows.Scan(&sp.ID, &updated, &sp.People, &sp.Relationships); err != nil {
			return nil, storageErr(err, "scan space")
		}
		sp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		spaces = append(spaces, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list spaces")
	}
	return spaces, nil
}

func (s *SQLiteStore) UpsertPerson(ctx context.Context, p family.Person) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_person", p.FamilySpaceID, start, err) }(time.Now())

	p, err = preparePerson(p)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, p.FamilySpaceID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO people (space_id, id, position, user_id, first_name, last_name, status, birth_date)
			VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM people WHERE space_id = ?), ?, ?, ?, ?, ?)
			ON CONFLICT(space_id, id) DO UPDATE SET
				user_id = excluded.user_id,
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				status = excluded.status,
				birth_date = excluded.birth_date`,
			p.FamilySpaceID, p.ID, p.FamilySpaceID, p.UserID, p.FirstName, p.LastName, string(p.Status), birthDate(p.BirthDate))
		return err
	})
	return storageErr(err, "upsert person %s", p.ID)
}

func (s *SQLiteStore) UpsertRelationship(ctx context.Context, r family.Relationship) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_relationship", r.FamilySpaceID, start, err) }(time.Now())

	if err := prepareRelationship(r); err != nil {
		return err
	}
	ok, err := spaceExists(ctx, s.db, r.FamilySpaceID)
	if err != nil {
		return storageErr(err, "load space %s", r.FamilySpaceID)
	}
	if !ok {
		return spaceNotFound(r.FamilySpaceID)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{r.PersonAID, r.PersonBID} {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM people WHERE space_id = ? AND id = ?`, r.FamilySpaceID, id).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				return danglingEndpoint(r, id)
			}
		}
		if err := s.touch(ctx, tx, r.FamilySpaceID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO relationships (space_id, id, position, type, person_a_id, person_b_id)
			VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM relationships WHERE space_id = ?), ?, ?, ?)
			ON CONFLICT(space_id, id) DO UPDATE SET
				type = excluded.type,
				person_a_id = excluded.person_a_id,
				person_b_id = excluded.person_b_id`,
			r.FamilySpaceID, r.ID, r.FamilySpaceID, string(r.Type), r.PersonAID, r.PersonBID)
		return err
	})
	return storageErr(err, "upsert relationship %s", r.ID)
}

func (s *SQLiteStore) Person(ctx context.Context, spaceID, personID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "person", spaceID, start, err) }(time.Now())
	return s.person(ctx, s.db, spaceID, personID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) person(ctx context.Context, q queryer, spaceID, personID string) (family.Person, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, first_name, last_name, status, birth_date
		 FROM people WHERE space_id = ? AND id = ?`, spaceID, personID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		ok, existsErr := spaceExists(ctx, q, spaceID)
		if existsErr == nil && !ok {
			return family.Person{}, spaceNotFound(spaceID)
		}
		return family.Person{}, personNotFound(spaceID, personID)
	}
	if err != nil {
		return family.Person{}, storageErr(err, "load person %s", personID)
	}
	p.FamilySpaceID = spaceID
	return p, nil
}

func (s *SQLiteStore) ActivatePerson(ctx context.Context, spaceID, personID, userID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "activate_person", spaceID, start, err) }(time.Now())

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = s.person(ctx, tx, spaceID, personID)
		if err != nil {
			return err
		}
		if err := p.Activate(userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE people SET status = ?, user_id = ? WHERE space_id = ? AND id = ?`,
			string(p.Status), p.UserID, spaceID, personID); err != nil {
			return err
		}
		return s.touch(ctx, tx, spaceID)
	})
	if err != nil {
		return family.Person{}, storageErr(err, "activate person %s", personID)
	}
	return p, nil
}

func spaceExists(ctx context.Context, q queryer, spaceID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE id = ?`, spaceID).Scan(&n)
	return n > 0, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (family.Person, error) {
	var (
		p      family.Person
		status string
		born   sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &status, &born); err != nil {
		return family.Person{}, err
	}
	p.Status = family.Status(status)
	if born.Valid && born.String != "" {
		d, err := family.ParseDate(born.String)
		if err != nil {
			return family.Person{}, err
		}
		p.BirthDate = &d
	}
	return p, nil
}

func birthDate(d *family.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

var _ Store = (*SQLiteStore)(nil)
