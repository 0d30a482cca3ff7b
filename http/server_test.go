package http

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"audra/auth"
	"audra/domain"
	"audra/errs"
)

const testJWTKey = "test-jwt-key"

// fakeUserService is an in-memory stand-in for the crud user service.
type fakeUserService struct {
	users     map[primitive.ObjectID]*domain.User
	createErr error
	authErr   error
}

func newFakeUserService(users ...*domain.User) *fakeUserService {
	s := &fakeUserService{users: map[primitive.ObjectID]*domain.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

var _ domain.UserService = &fakeUserService{}

func (s *fakeUserService) CreateUser(_ context.Context, user *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = primitive.NewObjectID()
	user.Password = ""
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserService) UpdateUser(_ context.Context, id primitive.ObjectID, upd *domain.UserUpdate) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	}
	if upd.UserName != nil {
		user.UserName = *upd.UserName
	}
	if upd.ProfilePicture != nil {
		user.ProfilePicture = *upd.ProfilePicture
	}
	if upd.ProfileAudio != nil {
		user.ProfileAudio = *upd.ProfileAudio
	}
	return user, nil
}

func (s *fakeUserService) ByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
}

func (s *fakeUserService) ByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
}

func (s *fakeUserService) Authenticate(_ context.Context, email, password string) (*domain.User, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return s.ByEmail(context.Background(), email)
}

func (s *fakeUserService) Search(_ context.Context, term string) ([]*domain.User, error) {
	matched := []*domain.User{}
	for _, user := range s.users {
		if user.UserName == term {
			matched = append(matched, user)
		}
	}
	return matched, nil
}

// followCall records one follow/unfollow invocation.
type followCall struct {
	follower primitive.ObjectID
	followed primitive.ObjectID
}

// fakeFollowService is an in-memory stand-in for the crud follow service.
type fakeFollowService struct {
	followErr   error
	unfollowErr error
	follows     []followCall
	unfollows   []followCall
	following   map[primitive.ObjectID][]domain.ProfileSnapshot
	followers   map[primitive.ObjectID][]domain.ProfileSnapshot
}

func newFakeFollowService() *fakeFollowService {
	return &fakeFollowService{
		following: map[primitive.ObjectID][]domain.ProfileSnapshot{},
		followers: map[primitive.ObjectID][]domain.ProfileSnapshot{},
	}
}

var _ domain.FollowService = &fakeFollowService{}

func (s *fakeFollowService) Follow(_ context.Context, followerID, followedID primitive.ObjectID) error {
	if s.followErr != nil {
		return s.followErr
	}
	s.follows = append(s.follows, followCall{follower: followerID, followed: followedID})
	return nil
}

func (s *fakeFollowService) Unfollow(_ context.Context, followerID, followedID primitive.ObjectID) error {
	if s.unfollowErr != nil {
		return s.unfollowErr
	}
	s.unfollows = append(s.unfollows, followCall{follower: followerID, followed: followedID})
	return nil
}

func (s *fakeFollowService) Following(_ context.Context, userID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	if list, ok := s.following[userID]; ok {
		return list, nil
	}
	return []domain.ProfileSnapshot{}, nil
}

func (s *fakeFollowService) Followers(_ context.Context, userID primitive.ObjectID) ([]domain.ProfileSnapshot, error) {
	if list, ok := s.followers[userID]; ok {
		return list, nil
	}
	return []domain.ProfileSnapshot{}, nil
}

func newTestServer(us domain.UserService, fs domain.FollowService) *Server {
	return NewServer(us, fs, auth.NewJWT(testJWTKey), zap.NewNop())
}
