package crud

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"audra/domain"
	"audra/errs"
)

// FollowService maintains the denormalized follow graph: the following and
// followers edge-list collections plus the two counters on the user
// documents. A follow touches up to four documents without a transaction,
// so the service relies on the store's per-document atomic primitives for
// deduplication and logs any partially applied write for the reconciler to
// pick up. It implements the domain.FollowService interface.
type FollowService struct {
	followValidator
}

// followValidator validates a follow/unfollow request and then sequences
// the document writes against the embedded followStore.
type followValidator struct {
	log *zap.Logger
	followStore
}

// followStore is the set of single-document atomic operations the follow
// graph is built from. Every method maps onto exactly one document write or
// read; the multi-document sequencing above it is what can partially fail.
type followStore interface {
	// Snapshot resolves a user's current profile snapshot.
	Snapshot(ctx context.Context, id primitive.ObjectID) (*domain.ProfileSnapshot, error)
	// AppendFollowing adds snap to ownerID's following list unless already
	// present, creating the list document on first use. It reports whether
	// the edge was newly created.
	AppendFollowing(ctx context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error)
	// AppendFollower is the symmetric conditional append on the followers
	// list.
	AppendFollower(ctx context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error)
	// RemoveFollowing pulls targetID from ownerID's following list and
	// reports whether an entry was actually removed.
	RemoveFollowing(ctx context.Context, ownerID, targetID primitive.ObjectID) (bool, error)
	// RemoveFollower pulls followerID from ownerID's followers list.
	RemoveFollower(ctx context.Context, ownerID, followerID primitive.ObjectID) (bool, error)
	// AdjustCounts increments (delta 1) or decrements (delta -1) the
	// follower's followingCount and the followed's followerCount as two
	// independent atomic updates. Decrements never push a counter below
	// zero.
	AdjustCounts(ctx context.Context, followerID, followedID primitive.ObjectID, delta int) error
	// Following and Followers return the stored snapshot lists, empty when
	// no document exists.
	Following(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error)
	Followers(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error)
}

// NewFollowService returns an instance of FollowService.
func NewFollowService(db *mongo.Database, log *zap.Logger) *FollowService {
	return &FollowService{
		followValidator{
			log: log,
			followStore: &followMongo{
				users:     db.Collection("users"),
				following: db.Collection("following"),
				followers: db.Collection("followers"),
			},
		},
	}
}

// Ensure the FollowService struct properly implements the
// domain.FollowService interface.
var _ domain.FollowService = &FollowService{}

// Follow makes followerID follow followedID. The write sequence is:
//
//  1. append the followed user's snapshot to the follower's following list
//     (conditional, the no-op tells us the edge already exists),
//  2. increment the two counters,
//  3. append the follower's snapshot to the followed user's followers list.
//
// The steps are applied in that order with no cross-document transaction.
// If a later step fails the earlier ones stay applied; the failure is
// logged with both ids and the failed step so the next reconciliation
// sweep can repair the drift.
func (fv *followValidator) Follow(ctx context.Context, followerID, followedID primitive.ObjectID) error {
	if followerID == followedID {
		return errs.Errorf(errs.EINVALID, "You cannot follow yourself.")
	}
	followedSnap, err := fv.Snapshot(ctx, followedID)
	if err != nil {
		return err
	}
	followerSnap, err := fv.Snapshot(ctx, followerID)
	if err != nil {
		return err
	}

	created, err := fv.AppendFollowing(ctx, followerID, followedSnap)
	if err != nil {
		return err
	}
	if !created {
		return errs.Errorf(errs.ECONFLICT, "You already follow this user.")
	}

	// The edge exists from here on. Counter and reverse-list failures leave
	// the graph drifted, not the request retried.
	if err := fv.AdjustCounts(ctx, followerID, followedID, 1); err != nil {
		fv.logPartial("follow", "counters", followerID, followedID, err)
		return errs.Errorf(errs.EINTERNAL, "Server error.")
	}
	if _, err := fv.AppendFollower(ctx, followedID, followerSnap); err != nil {
		fv.logPartial("follow", "followers-list", followerID, followedID, err)
		return errs.Errorf(errs.EINTERNAL, "Server error.")
	}
	return nil
}

// Unfollow removes the edge between followerID and followedID. Removing an
// edge that doesn't exist is a silent no-op, which makes the operation
// idempotent. Counters are only decremented when an entry was actually
// pulled, and never below zero.
func (fv *followValidator) Unfollow(ctx context.Context, followerID, followedID primitive.ObjectID) error {
	if followerID == followedID {
		return errs.Errorf(errs.EINVALID, "You cannot unfollow yourself.")
	}

	removed, err := fv.RemoveFollowing(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if removed {
		if err := fv.AdjustCounts(ctx, followerID, followedID, -1); err != nil {
			fv.logPartial("unfollow", "counters", followerID, followedID, err)
			return errs.Errorf(errs.EINTERNAL, "Server error.")
		}
	}
	if _, err := fv.RemoveFollower(ctx, followedID, followerID); err != nil {
		if removed {
			fv.logPartial("unfollow", "followers-list", followerID, followedID, err)
			return errs.Errorf(errs.EINTERNAL, "Server error.")
		}
		return err
	}
	return nil
}

// logPartial records a multi-document write that failed after one of its
// steps had already been applied. The entry carries everything the
// reconciler needs to find the drifted pair.
func (fv *followValidator) logPartial(op, step string, followerID, followedID primitive.ObjectID, err error) {
	fv.log.Error("follow graph write partially applied",
		zap.String("code", errs.EPARTIAL),
		zap.String("op", op),
		zap.String("failedStep", step),
		zap.String("follower", followerID.Hex()),
		zap.String("followed", followedID.Hex()),
		zap.Error(err),
	)
}

// followMongo implements followStore on the users, following and followers
// collections. Each method is a single document operation; the conditional
// appends rely on the unique index on userId to stay race-safe.
type followMongo struct {
	users     *mongo.Collection
	following *mongo.Collection
	followers *mongo.Collection
}

func (fm *followMongo) Snapshot(ctx context.Context, id primitive.ObjectID) (*domain.ProfileSnapshot, error) {
	var user domain.User
	err := fm.users.FindOne(ctx,
		bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{
			"userName":       1,
			"profileAudio":   1,
			"profilePicture": 1,
		}),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	} else if err != nil {
		return nil, err
	}
	return &domain.ProfileSnapshot{
		ID:             user.ID,
		UserName:       user.UserName,
		ProfileAudio:   user.ProfileAudio,
		ProfilePicture: user.ProfilePicture,
	}, nil
}

func (fm *followMongo) AppendFollowing(ctx context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error) {
	return fm.appendEdge(ctx, fm.following, "following", ownerID, snap)
}

func (fm *followMongo) AppendFollower(ctx context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error) {
	return fm.appendEdge(ctx, fm.followers, "followers", ownerID, snap)
}

// appendEdge pushes snap onto the owner's edge list in one upsert. The
// filter only matches a list that doesn't contain the target yet; when the
// list exists and already holds the target, the filter matches nothing and
// the attempted upsert-insert runs into the unique userId index instead of
// creating a second document. That duplicate-key error is the "already
// present" signal.
func (fm *followMongo) appendEdge(ctx context.Context, coll *mongo.Collection, field string, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error) {
	res, err := coll.UpdateOne(ctx,
		bson.M{
			"userId":      ownerID,
			field + ".id": bson.M{"$ne": snap.ID},
		},
		bson.M{
			"$push":        bson.M{field: snap},
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.ModifiedCount == 1 || res.UpsertedCount == 1, nil
}

func (fm *followMongo) RemoveFollowing(ctx context.Context, ownerID, targetID primitive.ObjectID) (bool, error) {
	return fm.removeEdge(ctx, fm.following, "following", ownerID, targetID)
}

func (fm *followMongo) RemoveFollower(ctx context.Context, ownerID, followerID primitive.ObjectID) (bool, error) {
	return fm.removeEdge(ctx, fm.followers, "followers", ownerID, followerID)
}

func (fm *followMongo) removeEdge(ctx context.Context, coll *mongo.Collection, field string, ownerID, entryID primitive.ObjectID) (bool, error) {
	res, err := coll.UpdateOne(ctx,
		bson.M{"userId": ownerID},
		bson.M{"$pull": bson.M{field: bson.M{"id": entryID}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (fm *followMongo) AdjustCounts(ctx context.Context, followerID, followedID primitive.ObjectID, delta int) error {
	followerFilter := bson.M{"_id": followerID}
	followedFilter := bson.M{"_id": followedID}
	if delta < 0 {
		// Guard against pushing a counter below zero when the graph has
		// drifted.
		followerFilter["followingCount"] = bson.M{"$gt": 0}
		followedFilter["followerCount"] = bson.M{"$gt": 0}
	}
	if _, err := fm.users.UpdateOne(ctx, followerFilter,
		bson.M{"$inc": bson.M{"followingCount": delta}}); err != nil {
		return err
	}
	if _, err := fm.users.UpdateOne(ctx, followedFilter,
		bson.M{"$inc": bson.M{"followerCount": delta}}); err != nil {
		return err
	}
	return nil
}

func (fm *followMongo) Following(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	var list domain.FollowingList
	err := fm.following.FindOne(ctx, bson.M{"userId": ownerID}).Decode(&list)
	if err == mongo.ErrNoDocuments {
		return []domain.ProfileSnapshot{}, nil
	} else if err != nil {
		return nil, err
	}
	if list.Following == nil {
		return []domain.ProfileSnapshot{}, nil
	}
	return list.Following, nil
}

func (fm *followMongo) Followers(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	var list domain.FollowerList
	err := fm.followers.FindOne(ctx, bson.M{"userId": ownerID}).Decode(&list)
	if err == mongo.ErrNoDocuments {
		return []domain.ProfileSnapshot{}, nil
	} else if err != nil {
		return nil, err
	}
	if list.Followers == nil {
		return []domain.ProfileSnapshot{}, nil
	}
	return list.Followers, nil
}
