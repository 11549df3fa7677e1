package database

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eco-relais-api-server/internal/auth"
	"eco-relais-api-server/internal/models"
)

// SeedAdmin đảm bảo luôn có một tài khoản admin để vào dashboard quản trị.
func SeedAdmin(db *mongo.Database) error {
	userCollection := db.Collection("users")
	adminEmail := "admin@eco-relais.fr"

	// Kiểm tra xem admin đã tồn tại chưa
	count, err := userCollection.CountDocuments(context.Background(), bson.M{"email": adminEmail})
	if err != nil {
		return err
	}

	if count > 0 {
		log.Println("Admin already exists. Seeding skipped.")
		return nil
	}

	log.Println("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword("adminpassword") // Đặt một password mặc định
	if err != nil {
		return err
	}

	admin := models.User{
		UserID:    uuid.New().String(),
		Email:     adminEmail,
		Password:  hashedPassword,
		Role:      models.RoleAdmin,
		FirstName: "Platform",
		LastName:  "Admin",
		Verified:  true,
		CreatedAt: time.Now(),
	}

	_, err = userCollection.InsertOne(context.Background(), admin)
	if err != nil {
		return err
	}

	log.Println("Admin seeded successfully.")
	return nil
}
