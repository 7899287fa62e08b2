package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mbeoliero/convsync/pkg/errcode"
)

// Claims represents the upstream access token claims
type Claims struct {
	UserId     string `json:"user_id"`
	PlatformId int    `json:"platform_id"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new HS256 token
func GenerateToken(userId string, platformId int, secret string, expireHours int) (string, error) {
	claims := Claims{
		UserId:     userId,
		PlatformId: platformId,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "convsync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseUnverified reads the claims of a token without checking its signature.
// The signing secret belongs to the IM server, which verifies the token on every call;
// the client only needs to know who it is.
func ParseUnverified(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errcode.ErrTokenMissing
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, errcode.ErrTokenExpired
	}
	if claims.UserId == "" {
		return nil, errcode.ErrTokenInvalid.Wrap(errors.New("user_id claim is empty"))
	}
	return claims, nil
}

// ResolveSelfId returns the configured user id, or the one carried by the token.
// When both are present they must agree.
func ResolveSelfId(configured, tokenString string) (string, error) {
	if tokenString == "" {
		if configured == "" {
			return "", errcode.ErrTokenMissing
		}
		return configured, nil
	}

	claims, err := ParseUnverified(tokenString)
	if err != nil {
		return "", err
	}
	if configured != "" && configured != claims.UserId {
		return "", errcode.ErrTokenMismatch
	}
	return claims.UserId, nil
}
