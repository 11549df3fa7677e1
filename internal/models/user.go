package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole là vai trò của một tài khoản trên nền tảng.
type UserRole string

const (
	RoleClient  UserRole = "client"
	RolePartner UserRole = "partner"
	RoleAdmin   UserRole = "admin"
)

// User struct matches the document in MongoDB.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID     string             `bson:"userID" json:"id"`
	Email      string             `bson:"email" json:"email"`
	Password   string             `bson:"password" json:"-"`
	Role       UserRole           `bson:"role" json:"role"`
	FirstName  string             `bson:"firstName" json:"first_name"`
	LastName   string             `bson:"lastName" json:"last_name"`
	Phone      string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address    string             `bson:"address,omitempty" json:"address,omitempty"`
	AddressLat float64            `bson:"addressLat,omitempty" json:"address_lat,omitempty"`
	AddressLng float64            `bson:"addressLng,omitempty" json:"address_lng,omitempty"`
	Verified   bool               `bson:"verified" json:"verified"`
	CreatedAt  time.Time          `bson:"createdAt" json:"created_at"`
}
