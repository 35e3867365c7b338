package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/knitfamily/knit/pkg/family"
)

// MemoryStore keeps spaces in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]*memSpace
	now    func() time.Time
}

type memSpace struct {
	people        []family.Person
	relationships []family.Relationship
	updatedAt     time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]*memSpace), now: time.Now}
}

func (m *MemoryStore) PutSnapshot(ctx context.Context, s family.Snapshot) (err error) {
	defer func(start time.Time, spaceID string) { observe(ctx, "put_snapshot", spaceID, start, err) }(time.Now(), s.FamilySpaceID)

	s, err = prepareSnapshot(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.spaces[s.FamilySpaceID] = &memSpace{
		people:        s.People,
		relationships: s.Relationships,
		updatedAt:     m.now(),
	}
	return nil
}

func (m *MemoryStore) Snapshot(ctx context.Context, spaceID string) (s family.Snapshot, err error) {
	defer func(start time.Time) { observe(ctx, "snapshot", spaceID, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	sp, ok := m.spaces[spaceID]
	if !ok {
		return family.Snapshot{}, spaceNotFound(spaceID)
	}
	s = family.Snapshot{
		FamilySpaceID: spaceID,
		People:        sp.people,
		Relationships: sp.relationships,
	}.Clone()
	if s.People == nil {
		s.People = []family.Person{}
	}
	if s.Relationships == nil {
		s.Relationships = []family.Relationship{}
	}
	return s, nil
}

func (m *MemoryStore) ListSpaces(ctx context.Context) ([]Space, error) {
	defer func(start time.Time) { observe(ctx, "list_spaces", "", start, nil) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Space, 0, len(m.spaces))
	for id, sp := range m.spaces {
		out = append(out, Space{
			ID:            id,
			People:        len(sp.people),
			Relationships: len(sp.relationships),
			UpdatedAt:     sp.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// space returns the space, creating it. Callers hold the write lock.
func (m *MemoryStore) space(id string) *memSpace {
	sp, ok := m.spaces[id]
	if !ok {
		sp = &memSpace{}
		m.spaces[id] = sp
	}
	return sp
}

func (m *MemoryStore) UpsertPerson(ctx context.Context, p family.Person) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_person", p.FamilySpaceID, start, err) }(time.Now())

	p, err = preparePerson(p)
	if err != nil {
		return err
	}
	if p.BirthDate != nil {
		d := *p.BirthDate
		p.BirthDate = &d
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sp := m.space(p.FamilySpaceID)
	if i := slices.IndexFunc(sp.people, func(q family.Person) bool { return q.ID == p.ID }); i >= 0 {
		sp.people[i] = p
	} else {
		sp.people = append(sp.people, p)
	}
	sp.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) UpsertRelationship(ctx context.Context, r family.Relationship) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_relationship", r.FamilySpaceID, start, err) }(time.Now())

	if err := prepareRelationship(r); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.spaces[r.FamilySpaceID]
	if !ok {
		return spaceNotFound(r.FamilySpaceID)
	}
	for _, id := range []string{r.PersonAID, r.PersonBID} {
		if !slices.ContainsFunc(sp.people, func(p family.Person) bool { return p.ID == id }) {
			return danglingEndpoint(r, id)
		}
	}
	if i := slices.IndexFunc(sp.relationships, func(q family.Relationship) bool { return q.ID == r.ID }); i >= 0 {
		sp.relationships[i] = r
	} else {
		sp.relationships = append(sp.relationships, r)
	}
	sp.updatedAt = m.now()
	return nil
}

func (m *MemoryStore) Person(ctx context.Context, spaceID, personID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "person", spaceID, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.person(spaceID, personID)
}

// person looks up a copy of a person. Callers hold a lock.
func (m *MemoryStore) person(spaceID, personID string) (family.Person, error) {
	sp, ok := m.spaces[spaceID]
	if !ok {
		return family.Person{}, spaceNotFound(spaceID)
	}
	for _, p := range sp.people {
		if p.ID == personID {
			if p.BirthDate != nil {
				d := *p.BirthDate
				p.BirthDate = &d
			}
			return p, nil
		}
	}
	return family.Person{}, personNotFound(spaceID, personID)
}

func (m *MemoryStore) ActivatePerson(ctx context.Context, spaceID, personID, userID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "activate_person", spaceID, start, err) }(time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	p, err = m.person(spaceID, personID)
	if err != nil {
		return family.Person{}, err
	}
	if err := p.Activate(userID); err != nil {
		return family.Person{}, err
	}
	sp := m.spaces[spaceID]
	i := slices.IndexFunc(sp.people, func(q family.Person) bool { return q.ID == personID })
	sp.people[i] = p
	sp.updatedAt = m.now()
	return p, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
