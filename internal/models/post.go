package models

import "time"

// Post represents a car post. The same struct is persisted in Firestore,
// MongoDB and PostgreSQL; each backend reads its own tags.
type Post struct {
	ID         string    `json:"id" firestore:"-" bson:"_id" gorm:"primaryKey;size:128"`
	AuthorID   string    `json:"author_id" firestore:"authorId" bson:"author_id" gorm:"index;size:128;not null"`
	Content    string    `json:"content" firestore:"content" bson:"content"`
	ImageURLs  []string  `json:"image_urls,omitempty" firestore:"imageUrls" bson:"image_urls,omitempty" gorm:"serializer:json"`
	CarTag     string    `json:"car_tag,omitempty" firestore:"carTag" bson:"car_tag,omitempty" gorm:"size:120;index"`
	LikesCount int64     `json:"likes_count" firestore:"likesCount" bson:"likes_count" gorm:"not null;default:0"`
	SavesCount int64     `json:"saves_count" firestore:"savesCount" bson:"saves_count" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" firestore:"updatedAt" bson:"updated_at"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=2000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	CarTag    string   `json:"car_tag,omitempty" validate:"omitempty,max=120"`
}

// UpdatePostRequest defines the request body for upserting a post under a known ID
type UpdatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=2000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	CarTag    string   `json:"car_tag,omitempty" validate:"omitempty,max=120"`
}
