package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"budgetme-notifications/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingKey   = errors.New("jwt secret is not configured")
)

// RoleService marks tokens issued to trusted backend callers.
const RoleService = "service_role"

// Service validates bearer tokens issued by the identity provider. Tokens are
// never issued here.
type Service interface {
	ValidateAccessToken(token string) (*Claims, error)
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims

	UserID uuid.UUID `json:"-"`
}

func (c *Claims) IsService() bool {
	return c.Role == RoleService
}

type service struct {
	secret []byte
}

func NewService(cfg *config.Config) Service {
	return &service{secret: []byte(cfg.JWTSecret)}
}

func (s *service) ValidateAccessToken(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrMissingKey
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Service tokens may carry no subject; user tokens must.
	if claims.Subject != "" {
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return nil, ErrInvalidToken
		}
		claims.UserID = id
	} else if !claims.IsService() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
