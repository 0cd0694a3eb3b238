package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bstardust/photo-ingest/internal/geo"
	"github.com/bstardust/photo-ingest/internal/logger"
)

// mongoRecord is the stored document. The point lives under lonlat with a
// 2dsphere index.
type mongoRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Folder     string             `bson:"folder"`
	FileName   string             `bson:"file_name"`
	StorageKey string             `bson:"storage_key"`
	Location   *string            `bson:"location"`
	TakenAt    *time.Time         `bson:"taken_at,omitempty"`
	Exif       map[string]any     `bson:"exif,omitempty"`
	Date       string             `bson:"date"`
	Width      *int               `bson:"width,omitempty"`
	Height     *int               `bson:"height,omitempty"`
	Size       int64              `bson:"size"`
	Format     string             `bson:"format"`
	LonLat     *geo.GeoPoint      `bson:"lonlat,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func toMongo(rec *Record) mongoRecord {
	return mongoRecord{
		Folder:     rec.Folder,
		FileName:   rec.FileName,
		StorageKey: rec.StorageKey,
		Location:   rec.Location,
		TakenAt:    rec.TakenAt,
		Exif:       rec.Exif,
		Date:       rec.Date,
		Width:      rec.Width,
		Height:     rec.Height,
		Size:       rec.Size,
		Format:     rec.Format,
		LonLat:     rec.GPSLocation,
	}
}

func (d mongoRecord) record() *Record {
	return &Record{
		ID:          d.ID.Hex(),
		Folder:      d.Folder,
		FileName:    d.FileName,
		StorageKey:  d.StorageKey,
		Location:    d.Location,
		TakenAt:     d.TakenAt,
		Exif:        d.Exif,
		Date:        d.Date,
		Width:       d.Width,
		Height:      d.Height,
		Size:        d.Size,
		Format:      d.Format,
		GPSLocation: d.LonLat,
		CreatedAt:   d.CreatedAt,
	}
}

// MongoStore keeps records in a MongoDB collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo connects to uri and prepares the collection indexes.
func ConnectMongo(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("records: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("records: ping mongo: %w", err)
	}

	s := &MongoStore{client: client, collection: client.Database(database).Collection(collection)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("Connected to MongoDB collection %s.%s", database, collection)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "storage_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "lonlat", Value: "2dsphere"}},
		},
	})
	if err != nil {
		return fmt.Errorf("records: create indexes: %w", err)
	}
	return nil
}

// Insert writes rec and returns the stored document.
func (s *MongoStore) Insert(ctx context.Context, rec *Record) (*Record, error) {
	doc := toMongo(rec)
	doc.CreatedAt = time.Now().UTC()

	res, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("records: insert %s: %w", rec.StorageKey, err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = oid
	}
	return doc.record(), nil
}

// GetByStorageKey returns the record stored under key.
func (s *MongoStore) GetByStorageKey(ctx context.Context, key string) (*Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.D{{Key: "storage_key", Value: key}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: get %s: %w", key, err)
	}
	return doc.record(), nil
}

// DeleteByStorageKeys removes the records of keys.
func (s *MongoStore) DeleteByStorageKeys(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res, err := s.collection.DeleteMany(ctx, bson.D{
		{Key: "storage_key", Value: bson.D{{Key: "$in", Value: keys}}},
	})
	if err != nil {
		return 0, fmt.Errorf("records: delete: %w", err)
	}
	return res.DeletedCount, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
