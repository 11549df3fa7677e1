// server/internal/store/mongo.go
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eco-relais-api-server/internal/models"
)

// MongoMissions cài đặt Missions trên MongoDB. Mỗi transition là một
// FindOneAndUpdate có filter trên trạng thái nguồn (và partner nếu cần),
// nên Mongo tự serialize các request đua nhau trên cùng một document.
type MongoMissions struct {
	DB *mongo.Database
}

func NewMongoMissions(db *mongo.Database) *MongoMissions {
	return &MongoMissions{DB: db}
}

func (s *MongoMissions) col() *mongo.Collection {
	return s.DB.Collection("missions")
}

func (s *MongoMissions) Create(ctx context.Context, m *models.Mission) error {
	count, err := s.col().CountDocuments(ctx, bson.M{"missionID": m.MissionID})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}

	result, err := s.col().InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (s *MongoMissions) Get(ctx context.Context, missionID string) (*models.Mission, error) {
	var m models.Mission
	err := s.col().FindOne(ctx, bson.M{"missionID": missionID}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *MongoMissions) List(ctx context.Context, f ListFilter) ([]models.Mission, error) {
	filter := bson.M{}
	if f.ClientID != "" {
		filter["clientID"] = f.ClientID
	}
	if f.PartnerID != "" {
		filter["partnerID"] = f.PartnerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.col().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var missions []models.Mission
	if err = cursor.All(ctx, &missions); err != nil {
		return nil, err
	}
	if missions == nil {
		missions = []models.Mission{}
	}
	return missions, nil
}

// transition thực hiện CAS: filter phải khớp thì update mới được áp dụng.
// Nếu không khớp, kiểm tra xem có phải retry của chính transition này
// (cùng idemKey, đã ở trạng thái đích) trước khi trả ErrConflict.
func (s *MongoMissions) transition(ctx context.Context, missionID string, filter, set bson.M, unset bson.M, target models.MissionStatus, idemKey string) (*models.Mission, error) {
	set["lastTransitionKey"] = idemKey

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Mission
	err := s.col().FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err == nil {
		return &m, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	// CAS trượt: mission không tồn tại, hoặc đã rời trạng thái nguồn.
	current, getErr := s.Get(ctx, missionID)
	if getErr != nil {
		return nil, getErr
	}
	if idemKey != "" && current.LastTransitionKey == idemKey && current.Status == target {
		return current, nil
	}
	return nil, ErrConflict
}

func (s *MongoMissions) Accept(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    models.StatusPending,
		// Chỉ thắng khi chưa ai được gán, kẻ thua cuộc đua thấy ErrConflict.
		"partnerID": bson.M{"$in": bson.A{nil, ""}},
	}
	set := bson.M{
		"status":    models.StatusAccepted,
		"partnerID": partnerID,
	}
	return s.transition(ctx, missionID, filter, set, nil, models.StatusAccepted, idemKey)
}

func (s *MongoMissions) Release(ctx context.Context, missionID, partnerID string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    models.StatusAccepted,
		"partnerID": partnerID,
	}
	set := bson.M{"status": models.StatusPending}
	unset := bson.M{"partnerID": ""}
	return s.transition(ctx, missionID, filter, set, unset, models.StatusPending, "")
}

func (s *MongoMissions) MarkCollected(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    models.StatusAccepted,
		"partnerID": partnerID,
	}
	set := bson.M{"status": models.StatusCollected}
	return s.transition(ctx, missionID, filter, set, nil, models.StatusCollected, idemKey)
}

func (s *MongoMissions) MarkInTransit(ctx context.Context, missionID, partnerID, idemKey string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    models.StatusCollected,
		"partnerID": partnerID,
	}
	set := bson.M{"status": models.StatusInTransit}
	return s.transition(ctx, missionID, filter, set, nil, models.StatusInTransit, idemKey)
}

func (s *MongoMissions) MarkDelivered(ctx context.Context, missionID, partnerID string, completedAt time.Time, idemKey string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    models.StatusInTransit,
		"partnerID": partnerID,
	}
	set := bson.M{
		"status":      models.StatusDelivered,
		"completedAt": completedAt,
	}
	return s.transition(ctx, missionID, filter, set, nil, models.StatusDelivered, idemKey)
}

func (s *MongoMissions) Cancel(ctx context.Context, missionID, idemKey string) (*models.Mission, error) {
	filter := bson.M{
		"missionID": missionID,
		"status":    bson.M{"$in": bson.A{models.StatusPending, models.StatusAccepted}},
	}
	set := bson.M{"status": models.StatusCancelled}
	unset := bson.M{"partnerID": ""}
	return s.transition(ctx, missionID, filter, set, unset, models.StatusCancelled, idemKey)
}
