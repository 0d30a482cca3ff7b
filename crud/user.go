package crud

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"audra/domain"
	"audra/errs"
)

// UserService manages Users. It also contains the part of the authentication
// system that handles credential verification, with http/auth.go dealing
// with requests and tokens being the "frontend". It implements the
// domain.UserService interface.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to userMongo.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	pepper     string
	emailRegex *regexp.Regexp
	userStore
}

// userStore runs the document operations on the users collection. It
// assumes that data has been validated.
type userStore interface {
	Insert(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id primitive.ObjectID, upd *domain.UserUpdate) (*domain.User, error)
	ByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	ByEmail(ctx context.Context, email string) (*domain.User, error)
	Search(ctx context.Context, term string) ([]*domain.User, error)
}

// NewUserService returns an instance of UserService.
func NewUserService(db *mongo.Database, pepper string) *UserService {
	return &UserService{
		userValidator{
			pepper:     pepper,
			emailRegex: regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,16}$`),
			userStore: &userMongo{
				users: db.Collection("users"),
			},
		},
	}
}

// Ensure the UserService struct properly implements the domain.UserService
// interface. If it does not, then this expression becomes invalid and won't
// compile.
var _ domain.UserService = &UserService{}

// Authenticate checks a submitted email address and password for existence
// and correctness.
func (uv *userValidator) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	// Look for a user document containing the submitted email address.
	user := domain.User{Email: email}
	if err := runUserValFns(&user, uv.emailNormalize); err != nil {
		return nil, err
	}
	found, err := uv.userStore.ByEmail(ctx, user.Email)
	if err != nil {
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return nil, errs.Errorf(errs.EINVALID, "User doesn't exist.")
		}
		return nil, err
	}

	// Append the predefined pepper to the submitted password, and compare
	// the result to the password hash stored in the user's document.
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+uv.pepper))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return nil, errs.Errorf(errs.EUNAUTHORIZED, "Email and password don't match.")
		}
		return nil, err
	}
	return found, nil
}

// CreateUser runs validations needed for creating new User documents.
func (uv *userValidator) CreateUser(ctx context.Context, user *domain.User) error {
	err := runUserValFns(user,
		uv.userNameRequired,
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.passwordBcrypt,
		uv.passwordHashRequired,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail(ctx))
	if err != nil {
		return err
	}
	return uv.userStore.Insert(ctx, user)
}

// UpdateUser applies the provided profile changes to a user document.
// Only userName, profilePicture and profileAudio may change; email,
// credentials and the follow counters are off limits here. Edge-list
// snapshots referencing the user keep their old field values.
func (uv *userValidator) UpdateUser(ctx context.Context, id primitive.ObjectID, upd *domain.UserUpdate) (*domain.User, error) {
	if upd.UserName != nil && strings.TrimSpace(*upd.UserName) == "" {
		return nil, errs.Errorf(errs.EINVALID, "User name must not be empty.")
	}
	return uv.userStore.Update(ctx, id, upd)
}

// Search looks up users whose userName matches the given term.
func (uv *userValidator) Search(ctx context.Context, term string) ([]*domain.User, error) {
	if strings.TrimSpace(term) == "" {
		return nil, errs.Errorf(errs.EINVALID, "Search term must not be empty.")
	}
	return uv.userStore.Search(ctx, term)
}

// runUserValFns runs any number of functions of type userValFn on the passed
// in User object. If none of them returns an error, it returns nil.
// Otherwise, it returns the respective error.
func runUserValFns(user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(user); err != nil {
			return err
		}
	}
	return nil
}

// A userValFn is any function that takes in a pointer to a domain.User
// object and returns an error.
type userValFn func(user *domain.User) error

// userNameRequired makes sure that a user name is provided.
func (uv *userValidator) userNameRequired(user *domain.User) error {
	if strings.TrimSpace(user.UserName) == "" {
		return errs.Errorf(errs.EINVALID, "User name is required.")
	}
	return nil
}

// emailFormat makes sure that a provided email address matches a predefined
// regex pattern.
func (uv *userValidator) emailFormat(user *domain.User) error {
	if user.Email == "" {
		return nil
	}
	if !uv.emailRegex.MatchString(user.Email) {
		return errs.Errorf(errs.EINVALID, "Email address is not valid.")
	}
	return nil
}

// emailIsAvail makes sure that a provided email address is not taken yet.
// Uniqueness is ultimately enforced by the unique index on the email field,
// this check just produces a friendlier error ahead of the write.
func (uv *userValidator) emailIsAvail(ctx context.Context) userValFn {
	return func(user *domain.User) error {
		existing, err := uv.userStore.ByEmail(ctx, user.Email)
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return nil // Address is not taken.
		}
		if err != nil {
			return err
		}
		if user.ID != existing.ID { // If they are the same, it's just an update.
			return errs.Errorf(errs.ECONFLICT, "User already registered.")
		}
		return nil
	}
}

// emailNormalize lowercases and trims a provided email address, so lookups
// are case-insensitive.
func (uv *userValidator) emailNormalize(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	user.Email = strings.TrimSpace(user.Email)
	return nil
}

// emailRequired makes sure that an email address is provided.
func (uv *userValidator) emailRequired(user *domain.User) error {
	if user.Email == "" {
		return errs.Errorf(errs.EINVALID, "Email address is required.")
	}
	return nil
}

// passwordBcrypt hashes a user's password with a predefined pepper and
// bcrypts it, if the Password field is not the empty string.
func (uv *userValidator) passwordBcrypt(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	pwBytes := []byte(user.Password + uv.pepper)
	hashedBytes, err := bcrypt.GenerateFromPassword(pwBytes, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedBytes)
	user.Password = ""
	return nil
}

// passwordHashRequired makes sure a password hash has been produced.
func (uv *userValidator) passwordHashRequired(user *domain.User) error {
	if user.PasswordHash == "" {
		return errs.Errorf(errs.EINVALID, "Password is required.")
	}
	return nil
}

// passwordMinLength makes sure a provided password has at least 8 characters.
func (uv *userValidator) passwordMinLength(user *domain.User) error {
	if user.Password == "" {
		return nil
	}
	if utf8.RuneCountInString(user.Password) < 8 {
		return errs.Errorf(errs.EINVALID, "Password must be at least 8 characters long.")
	}
	return nil
}

// passwordRequired makes sure that a password is provided.
func (uv *userValidator) passwordRequired(user *domain.User) error {
	if user.Password == "" {
		return errs.Errorf(errs.EINVALID, "Password is required.")
	}
	return nil
}

// userMongo is the users-collection implementation of userStore.
type userMongo struct {
	users *mongo.Collection
}

func (um *userMongo) Insert(ctx context.Context, user *domain.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	_, err := um.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// A concurrent signup with the same address won the race.
			return errs.Errorf(errs.ECONFLICT, "User already registered.")
		}
		return err
	}
	return nil
}

func (um *userMongo) Update(ctx context.Context, id primitive.ObjectID, upd *domain.UserUpdate) (*domain.User, error) {
	set := bson.M{}
	if upd.UserName != nil {
		set["userName"] = *upd.UserName
	}
	if upd.ProfilePicture != nil {
		set["profilePicture"] = *upd.ProfilePicture
	}
	if upd.ProfileAudio != nil {
		set["profileAudio"] = *upd.ProfileAudio
	}
	if len(set) == 0 {
		return um.ByID(ctx, id)
	}

	var user domain.User
	err := um.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (um *userMongo) ByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User
	err := um.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (um *userMongo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := um.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, errs.Errorf(errs.ENOTFOUND, "User not found.")
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (um *userMongo) Search(ctx context.Context, term string) ([]*domain.User, error) {
	filter := bson.M{"userName": primitive.Regex{
		Pattern: regexp.QuoteMeta(term),
		Options: "i",
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "userName", Value: 1}}).
		SetLimit(20)
	cursor, err := um.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []*domain.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
