package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Davzs/adezz/internal/utils"
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller passed into service operations.
type Identity struct {
	UserID  utils.SixID
	IsAdmin bool
}

// Identity converts validated claims into an Identity.
func (c *Claims) Identity() (Identity, error) {
	id, err := utils.ParseSixID(c.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid user id claim: %w", err)
	}
	if id.IsZero() {
		return Identity{}, errors.New("missing user id claim")
	}
	return Identity{UserID: id, IsAdmin: c.IsAdmin}, nil
}

// GenerateJWT creates a new JWT for a given user.
func GenerateJWT(userID utils.SixID, isAdmin bool, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID.String(),
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid JWT")
	}

	return claims, nil
}
