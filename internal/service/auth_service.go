package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/talentshire/assessment-core/internal/config"
)

// TokenType distinguishes the three callers of the API.
type TokenType string

const (
	TokenTypeAdmin     TokenType = "admin"
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeService   TokenType = "service"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeAdmin || t == TokenTypeCandidate || t == TokenTypeService
}

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
}

// SubjectID parses the subject as a uuid.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// AuthService issues and validates HS256 tokens. Identities live in the
// upstream identity store; this service only checks signatures.
type AuthService struct {
	secret []byte
	expiry time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{secret: []byte(cfg.JWTSecret), expiry: cfg.JWTExpiry}
}

// IssueToken signs a token for subject. A zero ttl uses the configured expiry.
func (s *AuthService) IssueToken(tokenType TokenType, subject uuid.UUID, ttl time.Duration) (string, error) {
	if !tokenType.Valid() {
		return "", fmt.Errorf("unknown token type %q", tokenType)
	}
	if ttl <= 0 {
		ttl = s.expiry
	}
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !claims.TokenType.Valid() {
		return nil, errors.New("invalid token type")
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	return claims, nil
}
