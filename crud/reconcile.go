package crud

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"audra/domain"
	"audra/errs"
)

// Reconciler repairs drift in the denormalized follow graph left behind by
// partially applied writes: missing reverse entries in the followers lists,
// stale reverse entries after an interrupted unfollow, and counters that no
// longer match the list lengths. The following lists are treated as the
// authoritative side, since the follow sequence writes them first and the
// unfollow sequence pulls from them first.
type Reconciler struct {
	log   *zap.Logger
	store reconcileStore
}

// reconcileStore is the subset of document operations the sweep needs.
type reconcileStore interface {
	Snapshot(ctx context.Context, id primitive.ObjectID) (*domain.ProfileSnapshot, error)
	AppendFollower(ctx context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error)
	RemoveFollower(ctx context.Context, ownerID, followerID primitive.ObjectID) (bool, error)
	Following(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error)
	Followers(ctx context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error)
	HasFollowing(ctx context.Context, followerID, followedID primitive.ObjectID) (bool, error)
	Owners(ctx context.Context) ([]primitive.ObjectID, error)
	SetCounts(ctx context.Context, userID primitive.ObjectID, followers, following int) error
}

// NewReconciler returns an instance of Reconciler.
func NewReconciler(db *mongo.Database, log *zap.Logger) *Reconciler {
	return &Reconciler{
		log: log,
		store: &followMongo{
			users:     db.Collection("users"),
			following: db.Collection("following"),
			followers: db.Collection("followers"),
		},
	}
}

// Sweep walks every user that owns an edge-list document, repairs the
// reverse entries first and then resets the counters to the actual list
// lengths. Concurrent follows during a sweep can make a freshly reset
// counter stale again; the next sweep converges on it.
func (rc *Reconciler) Sweep(ctx context.Context) error {
	owners, err := rc.store.Owners(ctx)
	if err != nil {
		return err
	}

	restored, pruned := 0, 0
	for _, owner := range owners {
		r, p, err := rc.repairEdges(ctx, owner)
		if err != nil {
			rc.log.Warn("edge repair failed",
				zap.String("owner", owner.Hex()), zap.Error(err))
			continue
		}
		restored += r
		pruned += p
	}
	// Re-list the owners: edge repair may have created followers documents
	// for users that didn't own one before.
	owners, err = rc.store.Owners(ctx)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if err := rc.resetCounts(ctx, owner); err != nil {
			rc.log.Warn("counter reset failed",
				zap.String("owner", owner.Hex()), zap.Error(err))
		}
	}

	rc.log.Info("reconciliation sweep finished",
		zap.Int("owners", len(owners)),
		zap.Int("restoredEdges", restored),
		zap.Int("prunedEdges", pruned),
	)
	return nil
}

// repairEdges makes the reverse lists agree with owner's edge documents:
// everyone the owner follows must list the owner as a follower, and
// everyone listed as the owner's follower must actually follow the owner.
func (rc *Reconciler) repairEdges(ctx context.Context, owner primitive.ObjectID) (restored, pruned int, err error) {
	following, err := rc.store.Following(ctx, owner)
	if err != nil {
		return 0, 0, err
	}
	if len(following) > 0 {
		ownerSnap, err := rc.store.Snapshot(ctx, owner)
		if err != nil {
			return 0, 0, err
		}
		for _, target := range following {
			created, err := rc.store.AppendFollower(ctx, target.ID, ownerSnap)
			if err != nil {
				return restored, pruned, err
			}
			if created {
				restored++
			}
		}
	}

	followers, err := rc.store.Followers(ctx, owner)
	if err != nil {
		return restored, pruned, err
	}
	for _, follower := range followers {
		ok, err := rc.store.HasFollowing(ctx, follower.ID, owner)
		if err != nil {
			return restored, pruned, err
		}
		if !ok {
			removed, err := rc.store.RemoveFollower(ctx, owner, follower.ID)
			if err != nil {
				return restored, pruned, err
			}
			if removed {
				pruned++
			}
		}
	}
	return restored, pruned, nil
}

// resetCounts sets the owner's counters to the lengths of their lists.
func (rc *Reconciler) resetCounts(ctx context.Context, owner primitive.ObjectID) error {
	following, err := rc.store.Following(ctx, owner)
	if err != nil {
		return err
	}
	followers, err := rc.store.Followers(ctx, owner)
	if err != nil {
		return err
	}
	err = rc.store.SetCounts(ctx, owner, len(followers), len(following))
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		// Edge documents without a user record; nothing to reset.
		return nil
	}
	return err
}

// HasFollowing reports whether followerID's following list contains
// followedID.
func (fm *followMongo) HasFollowing(ctx context.Context, followerID, followedID primitive.ObjectID) (bool, error) {
	n, err := fm.following.CountDocuments(ctx,
		bson.M{"userId": followerID, "following.id": followedID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Owners returns the ids of every user owning a following or followers
// document.
func (fm *followMongo) Owners(ctx context.Context) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	owners := []primitive.ObjectID{}
	for _, coll := range []*mongo.Collection{fm.following, fm.followers} {
		ids, err := coll.Distinct(ctx, "userId", bson.M{})
		if err != nil {
			return nil, err
		}
		for _, raw := range ids {
			id, ok := raw.(primitive.ObjectID)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			owners = append(owners, id)
		}
	}
	return owners, nil
}

// SetCounts overwrites both counters on a user document.
func (fm *followMongo) SetCounts(ctx context.Context, userID primitive.ObjectID, followers, following int) error {
	res, err := fm.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"followerCount":  followers,
			"followingCount": following,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.Errorf(errs.ENOTFOUND, "User not found.")
	}
	return nil
}
