package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// AccessTokenTTL is the lifetime of an issued access token
const AccessTokenTTL = time.Hour

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims are the identity claims carried by an access token
type Claims struct {
	UserID string
	Email  string
	Expiry time.Time
}

// Issuer creates and verifies HS256-signed access tokens
type Issuer struct {
	secret []byte
}

// NewIssuer creates a token issuer with the given signing secret
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue creates a signed access token for the user
func (i *Issuer) Issue(userID, email string) (string, time.Time, error) {
	now := NowTimeFunc()
	expiresAt := now.Add(AccessTokenTTL)

	claims := jwtlib.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   uuid.New().String(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a signed access token
func (i *Issuer) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwtlib.Parse(tokenStr, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	email, _ := mapClaims["email"].(string)

	claims := &Claims{UserID: sub, Email: email}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}
	return claims, nil
}
