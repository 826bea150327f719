package persistence

import (
	"context"
	"time"

	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/types"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoDefaultDatabase = "coderoom"
	mongoCollection      = "rooms"
	mongoOpTimeout       = 5 * time.Second
	mongoConnectTimeout  = 10 * time.Second
)

// mongoRecord mirrors the document shape of the original MongoDB deployment:
// one document per room keyed by the room id.
type mongoRecord struct {
	Id        string          `bson:"_id"`
	Content   string          `bson:"content"`
	Versions  []types.Version `bson:"versions"`
	CreatedAt time.Time       `bson:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

type MongoStore struct {
	client *mongo.Client
	rooms  *mongo.Collection
}

// NewMongoStore connects and pings at startup; an unreachable server surfaces
// here and nowhere else.
func NewMongoStore(cfg *config.Config) (Store, error) {
	uri := cfg.PersistenceConfig.Mongo.URI
	if uri == "" {
		uri = cfg.PersistenceConfig.DSN
	}
	if uri == "" {
		return nil, nil // no or wrong configuration, ignore the backend
	}
	database := cfg.PersistenceConfig.Mongo.Database
	if database == "" {
		database = mongoDefaultDatabase
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client: client,
		rooms:  client.Database(database).Collection(mongoCollection),
	}, nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoOpTimeout)
}

func mongoToDocument(rec *mongoRecord) *types.Document {
	versions := types.VersionList(rec.Versions)
	if versions == nil {
		versions = make(types.VersionList, 0)
	}
	return &types.Document{
		RoomID:    rec.Id,
		Content:   rec.Content,
		Versions:  versions,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func documentToMongo(doc *types.Document) *mongoRecord {
	return &mongoRecord{
		Id:        doc.RoomID,
		Content:   doc.Content,
		Versions:  doc.Versions,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func (s *MongoStore) fetch(ctx context.Context, roomID string) (*types.Document, error) {
	rec := mongoRecord{}
	err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&rec)
	if err != nil {
		return nil, err
	}
	return mongoToDocument(&rec), nil
}

func (s *MongoStore) put(ctx context.Context, doc *types.Document) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.rooms.ReplaceOne(ctx, bson.M{"_id": doc.RoomID}, documentToMongo(doc), opts)
	return err
}

func (s *MongoStore) Load(roomID string) (*types.Document, error) {
	ctx, cancel := opContext()
	defer cancel()
	doc, err := s.fetch(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		doc = types.NewDocument(roomID)
		if err := s.put(ctx, doc); err != nil {
			return nil, errors.Wrap(err, "create room")
		}
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load room")
	}
	return doc, nil
}

func (s *MongoStore) Save(roomID, content string) error {
	ctx, cancel := opContext()
	defer cancel()
	doc, err := s.fetch(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		now := time.Now().UTC()
		doc = &types.Document{
			RoomID:    roomID,
			Versions:  make(types.VersionList, 0),
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else if err != nil {
		return errors.Wrap(err, "save room")
	}
	doc.SetContent(content, time.Now().UTC())
	return errors.Wrap(s.put(ctx, doc), "save room")
}

func (s *MongoStore) ListVersions(roomID string) ([]types.VersionInfo, error) {
	ctx, cancel := opContext()
	defer cancel()
	doc, err := s.fetch(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		return []types.VersionInfo{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list versions")
	}
	return doc.VersionInfos(), nil
}

func (s *MongoStore) Restore(roomID string, index int) (string, error) {
	ctx, cancel := opContext()
	defer cancel()
	doc, err := s.fetch(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		return "", types.ErrVersionNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "restore version")
	}
	content, err := doc.RestoreVersion(index, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := s.put(ctx, doc); err != nil {
		return "", errors.Wrap(err, "restore version")
	}
	return content, nil
}

func (s *MongoStore) Rooms() ([]string, error) {
	ctx, cancel := opContext()
	defer cancel()
	cur, err := s.rooms.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	ids := make([]string, 0)
	for cur.Next(ctx) {
		rec := struct {
			Id string `bson:"_id"`
		}{}
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		ids = append(ids, rec.Id)
	}
	return ids, cur.Err()
}

func (s *MongoStore) Close() error {
	ctx, cancel := opContext()
	defer cancel()
	return s.client.Disconnect(ctx)
}
