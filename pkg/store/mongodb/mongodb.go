package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	fieldOwner     = "owner"
	fieldSaveData  = "saveData"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"

	ownerIndexName = "owner_unique"
)

type document struct {
	Owner     string    `bson:"owner"`
	SaveData  bson.M    `bson:"saveData"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store keeps save records as documents in a single collection.
type Store struct {
	coll   *mongo.Collection
	logger *logrus.Logger
}

func NewStore(coll *mongo.Collection, logger *logrus.Logger) *Store {
	return &Store{coll: coll, logger: logger}
}

// Migrate creates the unique owner index that makes Upsert race free.
func (s *Store) Migrate(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: fieldOwner, Value: 1}},
		Options: options.Index().SetUnique(true).SetName(ownerIndexName),
	}
	name, err := s.coll.Indexes().CreateOne(ctx, model)
	if err != nil {
		return fmt.Errorf("create index %s on %s: %w", ownerIndexName, s.coll.Name(), err)
	}
	s.logger.Infof("Ensured index %s on collection %s.%s", name, s.coll.Database().Name(), s.coll.Name())
	return nil
}

func (s *Store) FindByOwner(ctx context.Context, owner string) ([]savegame.SaveRecord, error) {
	// Two is enough to tell a unique record from a duplicate.
	cursor, err := s.coll.Find(ctx, bson.M{fieldOwner: owner}, options.Find().SetLimit(2))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []savegame.SaveRecord
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, savegame.SaveRecord{
			Owner:     doc.Owner,
			SaveData:  normalizeObject(doc.SaveData),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) Insert(ctx context.Context, rec savegame.SaveRecord) error {
	_, err := s.coll.InsertOne(ctx, bson.D{
		{Key: fieldOwner, Value: rec.Owner},
		{Key: fieldSaveData, Value: rec.SaveData},
		{Key: fieldCreatedAt, Value: rec.CreatedAt},
		{Key: fieldUpdatedAt, Value: rec.UpdatedAt},
	})
	if mongo.IsDuplicateKeyError(err) {
		return savegame.ErrDuplicateRecord
	}
	return err
}

func (s *Store) UpdateByOwner(ctx context.Context, owner string, data map[string]any, updatedAt time.Time) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{fieldOwner: owner}, bson.M{
		"$set": bson.M{fieldSaveData: data, fieldUpdatedAt: updatedAt},
	})
	return err
}

// Upsert writes the record in one update with upsert enabled. Two upserts
// racing on a new owner can both try to insert; the loser sees a duplicate
// key error and is retried once, at which point it matches the winner's
// document.
func (s *Store) Upsert(ctx context.Context, owner string, data map[string]any, now time.Time) error {
	filter := bson.M{fieldOwner: owner}
	update := bson.M{
		"$set":         bson.M{fieldSaveData: data, fieldUpdatedAt: now},
		"$setOnInsert": bson.M{fieldCreatedAt: now},
	}
	opts := options.Update().SetUpsert(true)

	_, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		s.logger.WithField("owner", owner).Warn("Duplicate key on upsert, retrying")
		_, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	return err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.coll.EstimatedDocumentCount(ctx)
}

// Close disconnects the client owning the collection.
func (s *Store) Close(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}

// normalizeObject turns the driver's bson.D/bson.M/primitive.A values into
// plain maps and slices so payloads compare and encode like decoded JSON.
func normalizeObject(m bson.M) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeObject(t)
	case map[string]any:
		return normalizeObject(bson.M(t))
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
