package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"audra/domain"
	"audra/errs"
)

// fakeFollowStore is an in-memory implementation of followStore and
// reconcileStore with switchable step failures.
type fakeFollowStore struct {
	users     map[primitive.ObjectID]domain.ProfileSnapshot
	following map[primitive.ObjectID][]domain.ProfileSnapshot
	followers map[primitive.ObjectID][]domain.ProfileSnapshot
	counts    map[primitive.ObjectID]*fakeCounts

	adjustCountsErr   error
	appendFollowerErr error
	removeFollowerErr error
}

type fakeCounts struct {
	followers int
	following int
}

func newFakeFollowStore(users ...domain.ProfileSnapshot) *fakeFollowStore {
	s := &fakeFollowStore{
		users:     map[primitive.ObjectID]domain.ProfileSnapshot{},
		following: map[primitive.ObjectID][]domain.ProfileSnapshot{},
		followers: map[primitive.ObjectID][]domain.ProfileSnapshot{},
		counts:    map[primitive.ObjectID]*fakeCounts{},
	}
	for _, u := range users {
		s.users[u.ID] = u
		s.counts[u.ID] = &fakeCounts{}
	}
	return s
}

func (s *fakeFollowStore) Snapshot(_ context.Context, id primitive.ObjectID) (*domain.ProfileSnapshot, error) {
	snap, ok := s.users[id]
	if !ok {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	}
	return &snap, nil
}

func contains(list []domain.ProfileSnapshot, id primitive.ObjectID) bool {
	for _, snap := range list {
		if snap.ID == id {
			return true
		}
	}
	return false
}

func (s *fakeFollowStore) AppendFollowing(_ context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error) {
	if contains(s.following[ownerID], snap.ID) {
		return false, nil
	}
	s.following[ownerID] = append(s.following[ownerID], *snap)
	return true, nil
}

func (s *fakeFollowStore) AppendFollower(_ context.Context, ownerID primitive.ObjectID, snap *domain.ProfileSnapshot) (bool, error) {
	if s.appendFollowerErr != nil {
		return false, s.appendFollowerErr
	}
	if contains(s.followers[ownerID], snap.ID) {
		return false, nil
	}
	s.followers[ownerID] = append(s.followers[ownerID], *snap)
	return true, nil
}

func remove(list []domain.ProfileSnapshot, id primitive.ObjectID) ([]domain.ProfileSnapshot, bool) {
	for i, snap := range list {
		if snap.ID == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

func (s *fakeFollowStore) RemoveFollowing(_ context.Context, ownerID, targetID primitive.ObjectID) (bool, error) {
	list, removed := remove(s.following[ownerID], targetID)
	s.following[ownerID] = list
	return removed, nil
}

func (s *fakeFollowStore) RemoveFollower(_ context.Context, ownerID, followerID primitive.ObjectID) (bool, error) {
	if s.removeFollowerErr != nil {
		return false, s.removeFollowerErr
	}
	list, removed := remove(s.followers[ownerID], followerID)
	s.followers[ownerID] = list
	return removed, nil
}

func (s *fakeFollowStore) AdjustCounts(_ context.Context, followerID, followedID primitive.ObjectID, delta int) error {
	if s.adjustCountsErr != nil {
		return s.adjustCountsErr
	}
	if c := s.counts[followerID]; c != nil && (delta > 0 || c.following > 0) {
		c.following += delta
	}
	if c := s.counts[followedID]; c != nil && (delta > 0 || c.followers > 0) {
		c.followers += delta
	}
	return nil
}

func (s *fakeFollowStore) Following(_ context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	return s.following[ownerID], nil
}

func (s *fakeFollowStore) Followers(_ context.Context, ownerID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	return s.followers[ownerID], nil
}

func (s *fakeFollowStore) HasFollowing(_ context.Context, followerID, followedID primitive.ObjectID) (bool, error) {
	return contains(s.following[followerID], followedID), nil
}

func (s *fakeFollowStore) Owners(_ context.Context) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	owners := []primitive.ObjectID{}
	for id := range s.following {
		if !seen[id] {
			seen[id] = true
			owners = append(owners, id)
		}
	}
	for id := range s.followers {
		if !seen[id] {
			seen[id] = true
			owners = append(owners, id)
		}
	}
	return owners, nil
}

func (s *fakeFollowStore) SetCounts(_ context.Context, userID primitive.ObjectID, followers, following int) error {
	c, ok := s.counts[userID]
	if !ok {
		return errs.Errorf(errs.ENOTFOUND, "User not found.")
	}
	c.followers = followers
	c.following = following
	return nil
}

func newTestFollowService(store followStore) (*FollowService, *observer.ObservedLogs) {
	core, logs := observer.New(zap.ErrorLevel)
	svc := &FollowService{followValidator{
		log:         zap.New(core),
		followStore: store,
	}}
	return svc, logs
}

func snapshotOf(name string) domain.ProfileSnapshot {
	return domain.ProfileSnapshot{
		ID:             primitive.NewObjectID(),
		UserName:       name,
		ProfileAudio:   "https://cdn.example.com/" + name + ".mp3",
		ProfilePicture: "https://cdn.example.com/" + name + ".png",
	}
}

func TestFollow(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	svc, _ := newTestFollowService(store)

	err := svc.Follow(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.ProfileSnapshot{bob}, store.following[alice.ID])
	assert.Equal(t, []domain.ProfileSnapshot{alice}, store.followers[bob.ID])
	assert.Equal(t, 1, store.counts[alice.ID].following)
	assert.Equal(t, 1, store.counts[bob.ID].followers)
	assert.Equal(t, 0, store.counts[alice.ID].followers)
	assert.Equal(t, 0, store.counts[bob.ID].following)
}

func TestFollow_Duplicate(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	svc, _ := newTestFollowService(store)

	require.NoError(t, svc.Follow(context.Background(), alice.ID, bob.ID))
	err := svc.Follow(context.Background(), alice.ID, bob.ID)
	assert.Equal(t, errs.ECONFLICT, errs.ErrorCode(err))

	// The second call must not append or double-increment.
	assert.Len(t, store.following[alice.ID], 1)
	assert.Len(t, store.followers[bob.ID], 1)
	assert.Equal(t, 1, store.counts[alice.ID].following)
	assert.Equal(t, 1, store.counts[bob.ID].followers)
}

func TestFollow_Self(t *testing.T) {
	alice := snapshotOf("alice")
	store := newFakeFollowStore(alice)
	svc, _ := newTestFollowService(store)

	err := svc.Follow(context.Background(), alice.ID, alice.ID)
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
	assert.Empty(t, store.following[alice.ID])
}

func TestFollow_UnknownUser(t *testing.T) {
	alice := snapshotOf("alice")
	store := newFakeFollowStore(alice)
	svc, _ := newTestFollowService(store)

	err := svc.Follow(context.Background(), alice.ID, primitive.NewObjectID())
	assert.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	assert.Empty(t, store.following[alice.ID])
	assert.Equal(t, 0, store.counts[alice.ID].following)
}

func TestFollow_PartialCounterFailure(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	store.adjustCountsErr = errs.Errorf(errs.EINTERNAL, "connection reset")
	svc, logs := newTestFollowService(store)

	err := svc.Follow(context.Background(), alice.ID, bob.ID)
	assert.Equal(t, errs.EINTERNAL, errs.ErrorCode(err))

	// The edge was created before the failure and stays applied.
	assert.Len(t, store.following[alice.ID], 1)
	assert.Empty(t, store.followers[bob.ID])

	// The partial application is logged distinctly for the reconciler.
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, errs.EPARTIAL, fields["code"])
	assert.Equal(t, "counters", fields["failedStep"])
	assert.Equal(t, alice.ID.Hex(), fields["follower"])
	assert.Equal(t, bob.ID.Hex(), fields["followed"])
}

func TestFollow_PartialReverseListFailure(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	store.appendFollowerErr = errs.Errorf(errs.EINTERNAL, "connection reset")
	svc, logs := newTestFollowService(store)

	err := svc.Follow(context.Background(), alice.ID, bob.ID)
	assert.Equal(t, errs.EINTERNAL, errs.ErrorCode(err))

	assert.Len(t, store.following[alice.ID], 1)
	assert.Equal(t, 1, store.counts[alice.ID].following)
	assert.Empty(t, store.followers[bob.ID])

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "followers-list", entries[0].ContextMap()["failedStep"])
}

func TestUnfollow_RoundTrip(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	svc, _ := newTestFollowService(store)

	require.NoError(t, svc.Follow(context.Background(), alice.ID, bob.ID))
	require.NoError(t, svc.Unfollow(context.Background(), alice.ID, bob.ID))

	assert.Empty(t, store.following[alice.ID])
	assert.Empty(t, store.followers[bob.ID])
	assert.Equal(t, 0, store.counts[alice.ID].following)
	assert.Equal(t, 0, store.counts[bob.ID].followers)
}

func TestUnfollow_NoEdge(t *testing.T) {
	alice, bob := snapshotOf("alice"), snapshotOf("bob")
	store := newFakeFollowStore(alice, bob)
	svc, _ := newTestFollowService(store)

	// Unfollowing someone never followed is a silent no-op.
	err := svc.Unfollow(context.Background(), alice.ID, bob.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, store.counts[alice.ID].following)
	assert.Equal(t, 0, store.counts[bob.ID].followers)
}

func TestUnfollow_Self(t *testing.T) {
	alice := snapshotOf("alice")
	store := newFakeFollowStore(alice)
	svc, _ := newTestFollowService(store)

	err := svc.Unfollow(context.Background(), alice.ID, alice.ID)
	assert.Equal(t, errs.EINVALID, errs.ErrorCode(err))
}
