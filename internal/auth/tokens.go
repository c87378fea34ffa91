// Package auth issues and verifies the two session tokens the backend
// uses: a JWT for local dashboard accounts, and a short-lived token
// carrying the Google identity handed over by the OAuth callback.
// Tokens are signed with HS256 using jwt.secret; the Google access and
// refresh tokens live only inside that signed cookie, never in the
// database.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/photoatlas/backend/internal/models"
)

// Cookie names, matching what the front end expects.
const (
	UserCookie     = "token"
	IdentityCookie = "gtoken"
)

// Default lifetimes.
const (
	UserTokenTTL     = 7 * 24 * time.Hour
	IdentityTokenTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

func secret() ([]byte, error) {
	s := viper.GetString("jwt.secret")
	if s == "" {
		return nil, fmt.Errorf("jwt.secret not configured")
	}
	return []byte(s), nil
}

type userClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// IssueUserToken signs a session token for a local account.
func IssueUserToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}

	claims := userClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseUserToken verifies a local-account token and returns the user ID.
func ParseUserToken(token string) (uuid.UUID, error) {
	key, err := secret()
	if err != nil {
		return uuid.Nil, err
	}

	var claims userClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	return id, nil
}

type identityClaims struct {
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DisplayName  string `json:"displayName"`
	jwt.RegisteredClaims
}

// IssueIdentityToken wraps a Google identity in a signed token. The
// OAuth callback (out of scope here) sets it as the IdentityCookie;
// the sync endpoint decodes it back into an Identity.
func IssueIdentityToken(identity models.Identity, ttl time.Duration) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}

	claims := identityClaims{
		Email:        identity.NormalizedEmail(),
		AccessToken:  identity.AccessToken,
		RefreshToken: identity.RefreshToken,
		DisplayName:  identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseIdentityToken verifies an identity token and reconstructs the
// Identity it carries.
func ParseIdentityToken(token string) (models.Identity, error) {
	key, err := secret()
	if err != nil {
		return models.Identity{}, err
	}

	var claims identityClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	return models.Identity{
		Email:        claims.Email,
		AccessToken:  claims.AccessToken,
		RefreshToken: claims.RefreshToken,
		DisplayName:  claims.DisplayName,
	}, nil
}
