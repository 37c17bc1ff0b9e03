package auth

import (
	"errors"
	"strings"
	"time"

	"aicavalli-order-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID    string      `json:"userId"`
	SessionID string      `json:"sessionId,omitempty"`
	Role      domain.Role `json:"role"`
	Phone     string      `json:"phone"`
	Name      *string     `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the request identity used by services.
func (c *Claims) Actor() (*domain.Actor, error) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return nil, errors.New("invalid user id in token")
	}
	role, ok := domain.ParseRole(string(c.Role))
	if !ok {
		return nil, errors.New("invalid role in token")
	}
	actor := &domain.Actor{UserID: userID, Role: role}
	if c.SessionID != "" {
		sid, err := uuid.Parse(c.SessionID)
		if err != nil {
			return nil, errors.New("invalid session id in token")
		}
		actor.SessionID = &sid
	}
	return actor, nil
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IssueAccessToken signs an HS256 token for user. sessionID is set for guests who checked in.
func IssueAccessToken(secret string, user domain.User, sessionID *uuid.UUID, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrSecretNotConfigured
	}
	expiresAt := now.Add(ttl)
	name := user.Name
	claims := Claims{
		UserID: user.ID.String(),
		Role:   user.Role,
		Phone:  user.Phone,
		Name:   &name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if sessionID != nil {
		claims.SessionID = sessionID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ErrSecretNotConfigured is returned when signing or verifying without a key.
var ErrSecretNotConfigured = errors.New("jwt secret not configured")

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	return VerifyAccessTokenAt(tokenString, secret, time.Now())
}

// VerifyAccessTokenAt checks signature and expiry against now.
func VerifyAccessTokenAt(tokenString string, secret string, now time.Time) (*Claims, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
