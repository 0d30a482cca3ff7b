package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"audra/errs"
)

const tokenLifetime = 24 * time.Hour

// Claims carries the authenticated user's id inside the signed token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// JWT mints and parses the HS256 auth tokens handed out on signup and login.
type JWT struct {
	key []byte
}

func NewJWT(key string) *JWT {
	return &JWT{key: []byte(key)}
}

// IssueToken returns a signed token identifying the given user.
func (j *JWT) IssueToken(userID primitive.ObjectID) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		},
		UserID: userID.Hex(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.key)
}

// ParseToken verifies a token string and returns the user id it was issued for.
func (j *JWT) ParseToken(tokenStr string) (primitive.ObjectID, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.key, nil
	})
	if err != nil || !token.Valid {
		return primitive.NilObjectID, errs.Errorf(errs.EUNAUTHORIZED, "Invalid auth token.")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, errs.Errorf(errs.EUNAUTHORIZED, "Invalid auth token.")
	}
	return id, nil
}
