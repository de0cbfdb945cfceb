package models

import "time"

// Relation is a directed edge between an actor and a target entity
// (a like on a post, a follow of a user). Presence of the row means the
// relation holds.
type Relation struct {
	Kind      string    `json:"kind" firestore:"-" bson:"kind" gorm:"primaryKey;size:16"`
	TargetID  string    `json:"target_id" firestore:"-" bson:"target_id" gorm:"primaryKey;size:128"`
	ActorID   string    `json:"actor_id" firestore:"-" bson:"actor_id" gorm:"primaryKey;size:128;index"`
	CreatedAt time.Time `json:"created_at" firestore:"createdAt" bson:"created_at"`
}

// ToggleRequest is the body of the toggle call. The flag is the caller's view
// of the relation before the call.
type ToggleRequest struct {
	CurrentlyRelated *bool `json:"currently_related" validate:"required"`
}
