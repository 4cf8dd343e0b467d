package logstats

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource counts log documents in a MongoDB collection whose documents
// carry "method", "path" and "ip" fields.
type MongoSource struct {
	coll *mongo.Collection
}

func NewMongoSource(coll *mongo.Collection) *MongoSource {
	return &MongoSource{coll: coll}
}

// DialMongo connects to uri and returns a source over database.collection
// plus a function that disconnects the client.
func DialMongo(ctx context.Context, uri, database, collection string) (*MongoSource, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping %s: %w", uri, err)
	}
	return NewMongoSource(client.Database(database).Collection(collection)), client.Disconnect, nil
}

func (s *MongoSource) Count(ctx context.Context, filter Filter) (int64, error) {
	return s.coll.CountDocuments(ctx, filterDoc(filter))
}

func (s *MongoSource) TopIPs(ctx context.Context, n int) ([]IPCount, error) {
	cur, err := s.coll.Aggregate(ctx, topIPsPipeline(n))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		IP    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]IPCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, IPCount{IP: r.IP, Count: r.Count})
	}
	return out, nil
}

func filterDoc(f Filter) bson.D {
	doc := bson.D{}
	if f.Method != "" {
		doc = append(doc, bson.E{Key: "method", Value: f.Method})
	}
	if f.Path != "" {
		doc = append(doc, bson.E{Key: "path", Value: f.Path})
	}
	return doc
}

func topIPsPipeline(n int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$ip"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(n)}},
	}
}
