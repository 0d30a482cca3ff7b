package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account holder. The Password field only carries the
// plaintext submitted on signup or login, it is never persisted. The hash
// stored in the "password" document field lives in PasswordHash and is
// never returned to clients. FollowerCount and FollowingCount are
// denormalized counters maintained exclusively by the FollowService.
type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserName       string             `json:"userName" bson:"userName"`
	Email          string             `json:"email" bson:"email"`
	Password       string             `json:"password,omitempty" bson:"-"`
	PasswordHash   string             `json:"-" bson:"password"`
	ProfileAudio   string             `json:"profileAudio" bson:"profileAudio"`
	ProfilePicture string             `json:"profilePicture" bson:"profilePicture"`
	FollowerCount  int                `json:"followerCount" bson:"followerCount"`
	FollowingCount int                `json:"followingCount" bson:"followingCount"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}

// UserService is a set of methods to manipulate and work with the User model.
type UserService interface {
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd *UserUpdate) (*User, error)
	ByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	Search(ctx context.Context, term string) ([]*User, error)
}

// UserUpdate carries the profile fields a user may change after signup.
// Nil fields are left untouched.
type UserUpdate struct {
	UserName       *string `json:"userName"`
	ProfilePicture *string `json:"profilePicture"`
	ProfileAudio   *string `json:"profileAudio"`
}
