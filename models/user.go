package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleUser    = "user"
	RolePartner = "partner"
	RoleAdmin   = "admin"
)

// User is the identity-provider view of an account. Registration and login
// live outside this service; the core only reads these fields.
type User struct {
	ID            primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string               `json:"name" bson:"name"`
	Email         string               `json:"email" bson:"email"`
	Role          string               `json:"role" bson:"role"`
	BlockedUsers  []primitive.ObjectID `json:"blockedUsers,omitempty" bson:"blockedUsers,omitempty"`
	IsPremium     bool                 `json:"isPremium" bson:"isPremium"`
	PremiumExpiry *time.Time           `json:"premiumExpiry,omitempty" bson:"premiumExpiry,omitempty"`
	FCMToken      string               `json:"-" bson:"fcmToken,omitempty"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// PremiumActive reports whether the user holds a premium subscription that
// has not expired at now.
func (u *User) PremiumActive(now time.Time) bool {
	return u.IsPremium && u.PremiumExpiry != nil && u.PremiumExpiry.After(now)
}

// HasBlocked reports whether u has blocked other.
func (u *User) HasBlocked(other primitive.ObjectID) bool {
	for _, id := range u.BlockedUsers {
		if id == other {
			return true
		}
	}
	return false
}

// BlockUserRequest model
type BlockUserRequest struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
}

// Response is the envelope every endpoint answers with
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
