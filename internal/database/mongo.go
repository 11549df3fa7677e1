// server/internal/database/mongo.go
package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eco-relais-api-server/config"
)

// Connect mở kết nối tới MongoDB và ping để chắc chắn server sống.
func Connect(cfg config.MongoConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client.Database(cfg.DBName), nil
}

// EnsureIndexes tạo các index cần cho đúng đắn và tốc độ:
// missionID/userID duy nhất, email duy nhất, và index phục vụ
// các truy vấn danh sách thường gặp.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	missionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "missionID", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "clientID", Value: 1}}},
		{Keys: bson.D{{Key: "partnerID", Value: 1}}},
	}
	if _, err := db.Collection("missions").Indexes().CreateMany(ctx, missionIndexes); err != nil {
		return err
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userID", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return err
	}

	txIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "partnerID", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "missionID", Value: 1}}},
	}
	if _, err := db.Collection("transactions").Indexes().CreateMany(ctx, txIndexes); err != nil {
		return err
	}

	disputeIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "disputeID", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection("disputes").Indexes().CreateMany(ctx, disputeIndexes); err != nil {
		return err
	}

	return nil
}
