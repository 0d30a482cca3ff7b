package crud

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// A ServicesConfig is any function that takes in a pointer to a Services
// object and returns an error. It's basically just wrapping the constructor
// method of any given crud service. It exists to be able to easily create
// the crud services using functional options in main.go.
type ServicesConfig func(*Services) error

// Services is a container object holding pointers to all the crud services.
// The crud services all share the database handle and logger provided by
// Services.
type Services struct {
	db  *mongo.Database
	log *zap.Logger

	User       *UserService
	Follow     *FollowService
	Reconciler *Reconciler
}

// NewServices returns a new Services object, containing any crud services
// it's told to create by one of the passed in ServicesConfig functions.
// It shares the passed in database handle and logger with any crud service
// it creates.
func NewServices(db *mongo.Database, log *zap.Logger, cfgs ...ServicesConfig) (*Services, error) {
	s := Services{
		db:  db,
		log: log,
	}
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// WithUser wraps the constructor of UserService, NewUserService.
func WithUser(pepper string) ServicesConfig {
	return func(s *Services) error {
		s.User = NewUserService(s.db, pepper)
		return nil
	}
}

// WithFollow wraps the constructor of FollowService, NewFollowService.
func WithFollow() ServicesConfig {
	return func(s *Services) error {
		s.Follow = NewFollowService(s.db, s.log)
		return nil
	}
}

// WithReconciler wraps the constructor of Reconciler, NewReconciler.
func WithReconciler() ServicesConfig {
	return func(s *Services) error {
		s.Reconciler = NewReconciler(s.db, s.log)
		return nil
	}
}
