package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/knitfamily/knit/pkg/errors"
	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/observability"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("KNIT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("KNIT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db := "knit_test_" + time.Now().Format("20060102150405.000000")
	s, err := NewMongoStore(ctx, uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(context.Background())
		s.Close()
	})
	return s
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return newTestSQLiteStore(t) },
		"mongo":  func(t *testing.T) Store { return newTestMongoStore(t) },
	}
}

func sampleSnapshot() family.Snapshot {
	born := family.Date{Year: 1950, Month: 3, Day: 14}
	return family.Snapshot{
		FamilySpaceID: "smiths",
		People: []family.Person{
			{ID: "gran", FirstName: "Edna", LastName: "Smith", Status: family.StatusDeceased, BirthDate: &born},
			{ID: "mum", FirstName: "Mary", LastName: "Smith", Status: family.StatusActive, UserID: "u-1"},
			{ID: "dad", FirstName: "John", LastName: "Smith"},
			{ID: "ann", FirstName: "Ann", Status: family.StatusInvited},
		},
		Relationships: []family.Relationship{
			{ID: "r1", Type: family.ParentChild, PersonAID: "gran", PersonBID: "mum"},
			{ID: "r2", Type: family.Partnership, PersonAID: "mum", PersonBID: "dad"},
			{ID: "r3", Type: family.ParentChild, PersonAID: "mum", PersonBID: "ann"},
		},
	}
}

func ids(people []family.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

func TestStores(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("snapshot round trip", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))

				got, err := s.Snapshot(ctx, "smiths")
				require.NoError(t, err)
				assert.Equal(t, "smiths", got.FamilySpaceID)
				assert.Equal(t, []string{"gran", "mum", "dad", "ann"}, ids(got.People))
				require.Len(t, got.Relationships, 3)
				assert.Equal(t, "r2", got.Relationships[1].ID)
				assert.Equal(t, family.Partnership, got.Relationships[1].Type)

				gran := got.People[0]
				require.NotNil(t, gran.BirthDate)
				assert.Equal(t, "1950-03-14", gran.BirthDate.String())
				assert.Equal(t, family.StatusPlaceholder, got.People[2].Status, "status defaults to placeholder")
				assert.Equal(t, "smiths", got.People[2].FamilySpaceID)
			})

			t.Run("put replaces space", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))
				require.NoError(t, s.PutSnapshot(ctx, family.Snapshot{
					FamilySpaceID: "smiths",
					People:        []family.Person{{ID: "solo"}},
				}))

				got, err := s.Snapshot(ctx, "smiths")
				require.NoError(t, err)
				assert.Equal(t, []string{"solo"}, ids(got.People))
				assert.Empty(t, got.Relationships)
			})

			t.Run("put rejects invalid snapshot", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				snap := sampleSnapshot()
				snap.Relationships = append(snap.Relationships, family.Relationship{
					ID: "bad", Type: family.ParentChild, PersonAID: "mum", PersonBID: "ghost",
				})
				err := s.PutSnapshot(ctx, snap)
				require.Error(t, err)
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeInvalidSnapshot))

				_, err = s.Snapshot(ctx, "smiths")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeSpaceNotFound))
			})

			t.Run("missing space", func(t *testing.T) {
				s := open(t)
				_, err := s.Snapshot(context.Background(), "nobody")
				require.Error(t, err)
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeSpaceNotFound))
				assert.True(t, errors.Is(err, ErrNotFound))
			})

			t.Run("list spaces", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))
				require.NoError(t, s.UpsertPerson(ctx, family.Person{FamilySpaceID: "jones", ID: "tom"}))

				spaces, err := s.ListSpaces(ctx)
				require.NoError(t, err)
				require.Len(t, spaces, 2)
				assert.Equal(t, "jones", spaces[0].ID)
				assert.Equal(t, 1, spaces[0].People)
				assert.Equal(t, "smiths", spaces[1].ID)
				assert.Equal(t, 4, spaces[1].People)
				assert.Equal(t, 3, spaces[1].Relationships)
				assert.False(t, spaces[1].UpdatedAt.IsZero())
			})

			t.Run("upsert person keeps position", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))

				require.NoError(t, s.UpsertPerson(ctx, family.Person{FamilySpaceID: "smiths", ID: "bob", FirstName: "Bob"}))
				require.NoError(t, s.UpsertPerson(ctx, family.Person{FamilySpaceID: "smiths", ID: "dad", FirstName: "Johnny"}))

				got, err := s.Snapshot(ctx, "smiths")
				require.NoError(t, err)
				assert.Equal(t, []string{"gran", "mum", "dad", "ann", "bob"}, ids(got.People))
				assert.Equal(t, "Johnny", got.People[2].FirstName)
			})

			t.Run("upsert person validation", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				err := s.UpsertPerson(ctx, family.Person{FamilySpaceID: "smiths", ID: ""})
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeInvalidID))

				err = s.UpsertPerson(ctx, family.Person{FamilySpaceID: "smiths", ID: "x", Status: "ghost"})
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeInvalidStatus))
			})

			t.Run("upsert relationship", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))

				require.NoError(t, s.UpsertRelationship(ctx, family.Relationship{
					FamilySpaceID: "smiths", ID: "r4", Type: family.ParentChild, PersonAID: "dad", PersonBID: "ann",
				}))
				got, err := s.Snapshot(ctx, "smiths")
				require.NoError(t, err)
				require.Len(t, got.Relationships, 4)
				assert.Equal(t, "r4", got.Relationships[3].ID)

				err = s.UpsertRelationship(ctx, family.Relationship{
					FamilySpaceID: "smiths", ID: "r5", Type: family.ParentChild, PersonAID: "dad", PersonBID: "ghost",
				})
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeInvalidRelationship))

				err = s.UpsertRelationship(ctx, family.Relationship{
					FamilySpaceID: "smiths", ID: "r6", Type: family.Partnership, PersonAID: "dad", PersonBID: "dad",
				})
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeInvalidRelationship))

				err = s.UpsertRelationship(ctx, family.Relationship{
					FamilySpaceID: "nobody", ID: "r7", Type: family.Partnership, PersonAID: "a", PersonBID: "b",
				})
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeSpaceNotFound))
			})

			t.Run("person lookup", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))

				p, err := s.Person(ctx, "smiths", "mum")
				require.NoError(t, err)
				assert.Equal(t, "Mary", p.FirstName)
				assert.Equal(t, "u-1", p.UserID)

				_, err = s.Person(ctx, "smiths", "ghost")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodePersonNotFound))
				_, err = s.Person(ctx, "nobody", "mum")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeSpaceNotFound))
			})

			t.Run("activate person", func(t *testing.T) {
				s := open(t)
				ctx := context.Background()
				require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))

				p, err := s.ActivatePerson(ctx, "smiths", "ann", "u-2")
				require.NoError(t, err)
				assert.Equal(t, family.StatusActive, p.Status)
				assert.Equal(t, "u-2", p.UserID)

				stored, err := s.Person(ctx, "smiths", "ann")
				require.NoError(t, err)
				assert.Equal(t, family.StatusActive, stored.Status)

				_, err = s.ActivatePerson(ctx, "smiths", "ann", "u-3")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeConflict))
				_, err = s.ActivatePerson(ctx, "smiths", "gran", "u-3")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodeConflict))
				_, err = s.ActivatePerson(ctx, "smiths", "ghost", "u-3")
				assert.True(t, kerrors.Is(err, kerrors.ErrCodePersonNotFound))
			})
		})
	}
}

type recordingStoreHooks struct {
	observability.NoopStoreHooks
	ops []string
}

func (h *recordingStoreHooks) OnQuery(_ context.Context, op, _ string, _ time.Duration, _ error) {
	h.ops = append(h.ops, op)
}

func TestStoreHooks(t *testing.T) {
	h := &recordingStoreHooks{}
	observability.Install(observability.Hooks{Store: h})
	t.Cleanup(observability.Reset)

	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))
	_, _ = s.Snapshot(ctx, "smiths")

	assert.Equal(t, []string{"put_snapshot", "snapshot"}, h.ops)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{DSN: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverSQLite})
	assert.Error(t, err, "sqlite needs a dsn")
}

func TestSQLiteStoreFile(t *testing.T) {
	path := t.TempDir() + "/knit.db"
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutSnapshot(ctx, sampleSnapshot()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Snapshot(ctx, "smiths")
	require.NoError(t, err)
	assert.Len(t, got.People, 4)
}
