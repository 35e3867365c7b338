package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/knitfamily/knit/pkg/family"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "knit"

// Collection names.
const (
	collSpaces        = "spaces"
	collPeople        = "people"
	collRelationships = "relationships"
)

// MongoStore persists spaces in MongoDB.
//
// PutSnapshot replaces a space with DeleteMany followed by InsertMany and
// is not atomic: a concurrent reader may see a partially written space.
type MongoStore struct {
	client        *mongo.Client
	spaces        *mongo.Collection
	people        *mongo.Collection
	relationships *mongo.Collection
	now           func() time.Time
}

type spaceDoc struct {
	ID        string    `bson:"_id"`
	Seq       int64     `bson:"seq"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type personDoc struct {
	SpaceID   string `bson:"space_id"`
	ID        string `bson:"id"`
	Seq       int64  `bson:"seq"`
	UserID    string `bson:"user_id,omitempty"`
	FirstName string `bson:"first_name,omitempty"`
	LastName  string `bson:"last_name,omitempty"`
	Status    string `bson:"status"`
	BirthDate string `bson:"birth_date,omitempty"`
}

type relationshipDoc struct {
	SpaceID   string `bson:"space_id"`
	ID        string `bson:"id"`
	Seq       int64  `bson:"seq"`
	Type      string `bson:"type"`
	PersonAID string `bson:"person_a_id"`
	PersonBID string `bson:"person_b_id"`
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		spaces:        db.Collection(collSpaces),
		people:        db.Collection(collPeople),
		relationships: db.Collection(collRelationships),
		now:           time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.people, s.relationships} {
		_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "space_id", Value: 1}, {Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "space_id", Value: 1}, {Key: "seq", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", c.Name(), err)
		}
	}
	return nil
}

// nextSeq touches the space document and reserves n sequence numbers,
// returning the first.
func (s *MongoStore) nextSeq(ctx context.Context, spaceID string, n int64) (int64, error) {
	var doc spaceDoc
	err := s.spaces.FindOneAndUpdate(ctx,
		bson.M{"_id": spaceID},
		bson.M{
			"$inc": bson.M{"seq": n},
			"$set": bson.M{"updated_at": s.now().UTC()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq - n, nil
}

func (s *MongoStore) touch(ctx context.Context, spaceID string) error {
	_, err := s.spaces.UpdateOne(ctx,
		bson.M{"_id": spaceID},
		bson.M{"$set": bson.M{"updated_at": s.now().UTC()}})
	return err
}

func (s *MongoStore) spaceExists(ctx context.Context, spaceID string) (bool, error) {
	n, err := s.spaces.CountDocuments(ctx, bson.M{"_id": spaceID})
	return n > 0, err
}

func (s *MongoStore) PutSnapshot(ctx context.Context, snap family.Snapshot) (err error) {
	defer func(start time.Time, spaceID string) { observe(ctx, "put_snapshot", spaceID, start, err) }(time.Now(), snap.FamilySpaceID)

	snap, err = prepareSnapshot(snap)
	if err != nil {
		return err
	}
	spaceID := snap.FamilySpaceID

	filter := bson.M{"space_id": spaceID}
	if _, err := s.relationships.DeleteMany(ctx, filter); err != nil {
		return storageErr(err, "clear relationships of %s", spaceID)
	}
	if _, err := s.people.DeleteMany(ctx, filter); err != nil {
		return storageErr(err, "clear people of %s", spaceID)
	}

	n := int64(len(snap.People) + len(snap.Relationships))
	seq, err := s.nextSeq(ctx, spaceID, n)
	if err != nil {
		return storageErr(err, "reserve sequence for %s", spaceID)
	}

	if len(snap.People) > 0 {
		docs := make([]any, len(snap.People))
		for i, p := range snap.People {
			docs[i] = toPersonDoc(spaceID, p, seq)
			seq++
		}
		if _, err := s.people.InsertMany(ctx, docs); err != nil {
			return storageErr(err, "insert people of %s", spaceID)
		}
	}
	if len(snap.Relationships) > 0 {
		docs := make([]any, len(snap.Relationships))
		for i, r := range snap.Relationships {
			docs[i] = toRelationshipDoc(spaceID, r, seq)
			seq++
		}
		if _, err := s.relationships.InsertMany(ctx, docs); err != nil {
			return storageErr(err, "insert relationships of %s", spaceID)
		}
	}
	return nil
}

func (s *MongoStore) Snapshot(ctx context.Context, spaceID string) (snap family.Snapshot, err error) {
	defer func(start time.Time) { observe(ctx, "snapshot", spaceID, start, err) }(time.Now())

	ok, err := s.spaceExists(ctx, spaceID)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load space %s", spaceID)
	}
	if !ok {
		return family.Snapshot{}, spaceNotFound(spaceID)
	}

	bySeq := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	filter := bson.M{"space_id": spaceID}

	var people []personDoc
	cur, err := s.people.Find(ctx, filter, bySeq)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load people of %s", spaceID)
	}
	if err := cur.All(ctx, &people); err != nil {
		return family.Snapshot{}, storageErr(err, "decode people of %s", spaceID)
	}

	var rels []relationshipDoc
	cur, err = s.relationships.Find(ctx, filter, bySeq)
	if err != nil {
		return family.Snapshot{}, storageErr(err, "load relationships of %s", spaceID)
	}
	if err := cur.All(ctx, &rels); err != nil {
		return family.Snapshot{}, storageErr(err, "decode relationships of %s", spaceID)
	}

	snap = family.Snapshot{
		FamilySpaceID: spaceID,
		People:        make([]family.Person, 0, len(people)),
		Relationships: make([]family.Relationship, 0, len(rels)),
	}
	for _, d := range people {
		p, err := d.person()
		if err != nil {
			return family.Snapshot{}, storageErr(err, "decode person %s", d.ID)
		}
		snap.People = append(snap.People, p)
	}
	for _, d := range rels {
		snap.Relationships = append(snap.Relationships, d.relationship())
	}
	return snap, nil
}

func (s *MongoStore) ListSpaces(ctx context.Context) (spaces []Space, err error) {
	defer func(start time.Time) { observe(ctx, "list_spaces", "", start, err) }(time.Now())

	cur, err := s.spaces.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageErr(err, "list spaces")
	}
	var docs []spaceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storageErr(err, "decode spaces")
	}

	spaces = make([]Space, 0, len(docs))
	for _, d := range docs {
		people, err := s.people.CountDocuments(ctx, bson.M{"space_id": d.ID})
		if err != nil {
			return nil, storageErr(err, "count people of %s", d.ID)
		}
		rels, err := s.relationships.CountDocuments(ctx, bson.M{"space_id": d.ID})
		if err != nil {
			return nil, storageErr(err, "count relationships of %s", d.ID)
		}
		spaces = append(spaces, Space{
			ID:            d.ID,
			People:        int(people),
			Relationships: int(rels),
			UpdatedAt:     d.UpdatedAt,
		})
	}
	return spaces, nil
}

func (s *MongoStore) UpsertPerson(ctx context.Context, p family.Person) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_person", p.FamilySpaceID, start, err) }(time.Now())

	p, err = preparePerson(p)
	if err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx, p.FamilySpaceID, 1)
	if err != nil {
		return storageErr(err, "reserve sequence for %s", p.FamilySpaceID)
	}

	doc := toPersonDoc(p.FamilySpaceID, p, seq)
	_, err = s.people.UpdateOne(ctx,
		bson.M{"space_id": doc.SpaceID, "id": doc.ID},
		bson.M{
			"$set": bson.M{
				"user_id":    doc.UserID,
				"first_name": doc.FirstName,
				"last_name":  doc.LastName,
				"status":     doc.Status,
				"birth_date": doc.BirthDate,
			},
			"$setOnInsert": bson.M{"seq": doc.Seq},
		},
		options.Update().SetUpsert(true))
	return storageErr(err, "upsert person %s", p.ID)
}

func (s *MongoStore) UpsertRelationship(ctx context.Context, r family.Relationship) (err error) {
	defer func(start time.Time) { observe(ctx, "upsert_relationship", r.FamilySpaceID, start, err) }(time.Now())

	if err := prepareRelationship(r); err != nil {
		return err
	}
	ok, err := s.spaceExists(ctx, r.FamilySpaceID)
	if err != nil {
		return storageErr(err, "load space %s", r.FamilySpaceID)
	}
	if !ok {
		return spaceNotFound(r.FamilySpaceID)
	}
	for _, id := range []string{r.PersonAID, r.PersonBID} {
		n, err := s.people.CountDocuments(ctx, bson.M{"space_id": r.FamilySpaceID, "id": id})
		if err != nil {
			return storageErr(err, "load person %s", id)
		}
		if n == 0 {
			return danglingEndpoint(r, id)
		}
	}

	seq, err := s.nextSeq(ctx, r.FamilySpaceID, 1)
	if err != nil {
		return storageErr(err, "reserve sequence for %s", r.FamilySpaceID)
	}
	_, err = s.relationships.UpdateOne(ctx,
		bson.M{"space_id": r.FamilySpaceID, "id": r.ID},
		bson.M{
			"$set": bson.M{
				"type":        string(r.Type),
				"person_a_id": r.PersonAID,
				"person_b_id": r.PersonBID,
			},
			"$setOnInsert": bson.M{"seq": seq},
		},
		options.Update().SetUpsert(true))
	return storageErr(err, "upsert relationship %s", r.ID)
}

func (s *MongoStore) Person(ctx context.Context, spaceID, personID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "person", spaceID, start, err) }(time.Now())
	return s.person(ctx, spaceID, personID)
}

func (s *MongoStore) person(ctx context.Context, spaceID, personID string) (family.Person, error) {
	var doc personDoc
	err := s.people.FindOne(ctx, bson.M{"space_id": spaceID, "id": personID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if ok, existsErr := s.spaceExists(ctx, spaceID); existsErr == nil && !ok {
			return family.Person{}, spaceNotFound(spaceID)
		}
		return family.Person{}, personNotFound(spaceID, personID)
	}
	if err != nil {
		return family.Person{}, storageErr(err, "load person %s", personID)
	}
	p, err := doc.person()
	if err != nil {
		return family.Person{}, storageErr(err, "decode person %s", personID)
	}
	return p, nil
}

func (s *MongoStore) ActivatePerson(ctx context.Context, spaceID, personID, userID string) (p family.Person, err error) {
	defer func(start time.Time) { observe(ctx, "activate_person", spaceID, start, err) }(time.Now())

	p, err = s.person(ctx, spaceID, personID)
	if err != nil {
		return family.Person{}, err
	}
	prev := p.Status
	if err := p.Activate(userID); err != nil {
		return family.Person{}, err
	}

	// Matching on the previous status makes a concurrent activation lose.
	res, err := s.people.UpdateOne(ctx,
		bson.M{"space_id": spaceID, "id": personID, "status": string(prev)},
		bson.M{"$set": bson.M{"status": string(p.Status), "user_id": p.UserID}})
	if err != nil {
		return family.Person{}, storageErr(err, "activate person %s", personID)
	}
	if res.MatchedCount == 0 {
		return s.ActivatePerson(ctx, spaceID, personID, userID)
	}
	if err := s.touch(ctx, spaceID); err != nil {
		return family.Person{}, storageErr(err, "touch space %s", spaceID)
	}
	return p, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toPersonDoc(spaceID string, p family.Person, seq int64) personDoc {
	d := personDoc{
		SpaceID:   spaceID,
		ID:        p.ID,
		Seq:       seq,
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Status:    string(p.Status),
	}
	if p.BirthDate != nil {
		d.BirthDate = p.BirthDate.String()
	}
	return d
}

func (d personDoc) person() (family.Person, error) {
	p := family.Person{
		ID:            d.ID,
		FamilySpaceID: d.SpaceID,
		UserID:        d.UserID,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Status:        family.Status(d.Status),
	}
	if d.BirthDate != "" {
		b, err := family.ParseDate(d.BirthDate)
		if err != nil {
			return family.Person{}, err
		}
		p.BirthDate = &b
	}
	return p, nil
}

func toRelationshipDoc(spaceID string, r family.Relationship, seq int64) relationshipDoc {
	return relationshipDoc{
		SpaceID:   spaceID,
		ID:        r.ID,
		Seq:       seq,
		Type:      string(r.Type),
		PersonAID: r.PersonAID,
		PersonBID: r.PersonBID,
	}
}

func (d relationshipDoc) relationship() family.Relationship {
	return family.Relationship{
		ID:            d.ID,
		FamilySpaceID: d.SpaceID,
		Type:          family.RelationType(d.Type),
		PersonAID:     d.PersonAID,
		PersonBID:     d.PersonBID,
	}
}

var _ Store = (*MongoStore)(nil)
