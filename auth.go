package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the salt rounds the service has always used for stored
// password hashes.
const bcryptCost = 10

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
	return string(b), err
}

// comparePassword reports whether plain matches the stored bcrypt hash.
// (false, nil) means the comparison ran and the password does not match;
// a non-nil error means the stored value could not be compared at all.
func comparePassword(stored, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// Claims is the payload embedded in a signed bearer token. The user id
// travels under the "_id" claim, matching tokens issued by earlier versions
// of this API.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// TokenService issues and verifies HS256 bearer tokens. Issuer and verifier
// share the one process-wide secret; every instance of the service must be
// configured with the same value for tokens to stay portable.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl}
}

// Issue signs a token binding the given user id. Every token carries an
// expiry so a session eventually becomes unusable.
func (s *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: userID,
	})
	return token.SignedString(s.secret)
}

// Verify checks the token's structure and signature and returns the embedded
// claims. It is pure local computation; resolving the claims to a stored
// user is a separate step.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is acceptable; reject alg substitution.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
