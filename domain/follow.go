package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfileSnapshot is a point-in-time copy of a user's public profile
// fields, embedded in the edge-list documents. Snapshots are not rewritten
// when the referenced user later edits their profile.
type ProfileSnapshot struct {
	ID             primitive.ObjectID `json:"id" bson:"id"`
	UserName       string             `json:"userName" bson:"userName"`
	ProfileAudio   string             `json:"profileAudio" bson:"profileAudio"`
	ProfilePicture string             `json:"profilePicture" bson:"profilePicture"`
}

// FollowingList holds, per owning user, the snapshots of everyone the
// owner follows. One document per user, created lazily on the first
// follow. A given target appears at most once.
type FollowingList struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	Following []ProfileSnapshot  `json:"following" bson:"following"`
}

// FollowerList is the symmetric collection: the snapshots of everyone who
// follows the owner.
type FollowerList struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	Followers []ProfileSnapshot  `json:"followers" bson:"followers"`
}

// FollowService maintains the follow graph across both edge-list
// collections and the counters on the user documents. The writes behind
// Follow and Unfollow span several documents without a transaction, so the
// cross-document invariants are best-effort and backed by reconciliation.
type FollowService interface {
	Follow(ctx context.Context, followerID, followedID primitive.ObjectID) error
	Unfollow(ctx context.Context, followerID, followedID primitive.ObjectID) error
	Following(ctx context.Context, userID primitive.ObjectID) ([]ProfileSnapshot, error)
	Followers(ctx context.Context, userID primitive.ObjectID) ([]ProfileSnapshot, error)
}
