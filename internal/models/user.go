package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Profile is a member of the club, keyed by the Firebase UID.
type Profile struct {
	ID             string    `json:"id" firestore:"-" bson:"_id" gorm:"primaryKey;size:128"`
	DisplayName    string    `json:"display_name" firestore:"displayName" bson:"display_name" gorm:"size:80"`
	Email          string    `json:"email,omitempty" firestore:"email" bson:"email,omitempty" gorm:"size:254;index"`
	PhotoURL       string    `json:"photo_url,omitempty" firestore:"photoUrl" bson:"photo_url,omitempty"`
	Bio            string    `json:"bio,omitempty" firestore:"bio" bson:"bio,omitempty" gorm:"size:500"`
	CarModel       string    `json:"car_model,omitempty" firestore:"carModel" bson:"car_model,omitempty" gorm:"size:120"`
	FollowersCount int64     `json:"followers_count" firestore:"followersCount" bson:"followers_count" gorm:"not null;default:0"`
	FollowingCount int64     `json:"following_count" firestore:"followingCount" bson:"following_count" gorm:"not null;default:0"`
	PostsCount     int64     `json:"posts_count" firestore:"postsCount" bson:"posts_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" firestore:"updatedAt" bson:"updated_at"`
}

// TableName keeps the profile rows in the users table.
func (Profile) TableName() string {
	return "users"
}

// UpdateProfileRequest defines the request body for PUT /users/me
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=80"`
	PhotoURL    string `json:"photo_url,omitempty" validate:"omitempty,url"`
	Bio         string `json:"bio,omitempty" validate:"omitempty,max=500"`
	CarModel    string `json:"car_model,omitempty" validate:"omitempty,max=120"`
}

// JwtCustomClaims are the claims of a locally signed session token
type JwtCustomClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
