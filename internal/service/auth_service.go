package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is an entry of the in-process user table.
type User struct {
	Username     string
	PasswordHash []byte
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
}

// AuthService issues and validates the bearer tokens that identify a
// user on the gateway surface. Token issuance is deliberately minimal:
// no refresh tokens, no sessions.
type AuthService interface {
	// IssueToken authenticates the password grant and returns a signed
	// access token.
	IssueToken(username, password string) (string, error)
	// ValidateToken verifies a bearer token and returns the username it
	// identifies.
	ValidateToken(token string) (string, error)
}

type authService struct {
	users  map[string]User
	config AuthConfig
}

// NewAuthService creates an AuthService over the given user table.
func NewAuthService(config AuthConfig, users []User) AuthService {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = time.Hour
	}
	table := make(map[string]User, len(users))
	for _, u := range users {
		table[u.Username] = u
	}
	return &authService{users: table, config: config}
}

// SeedUsers returns the built-in user table. Hashing happens at startup
// so no password material is committed in hashed-but-crackable form.
func SeedUsers() []User {
	seed := map[string]string{
		"alice": "alice-password",
		"bob":   "bob-password",
	}
	users := make([]User, 0, len(seed))
	for username, password := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			// bcrypt only fails on cost misuse; the default cost cannot.
			panic(fmt.Sprintf("failed to hash seed password: %v", err))
		}
		users = append(users, User{Username: username, PasswordHash: hash})
	}
	return users
}

// IssueToken authenticates the password grant and returns a signed
// access token.
func (s *authService) IssueToken(username, password string) (string, error) {
	user, ok := s.users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Username,
		Issuer:    s.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies a bearer token and returns the username.
func (s *authService) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
