// Package auth issues and checks the JWTs that guard the admin console.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid registration")
)

// Claims are carried by every access token.
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Users interface {
	store.Writer
	store.Reader
}

type Service struct {
	Users  Users
	Secret []byte
	TTL    time.Duration
	Log    *zap.Logger

	now func() time.Time
}

func NewService(users Users, secret string, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Users: users, Secret: []byte(secret), TTL: ttl, Log: log, now: time.Now}
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r Registration) validate() error {
	var missing []string
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if len(r.Password) < 8 {
		missing = append(missing, "password (at least 8 characters)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Register creates a user with the given role.
func (s *Service) Register(ctx context.Context, reg Registration, role string) (models.User, error) {
	if err := reg.validate(); err != nil {
		return models.User{}, err
	}
	username := strings.TrimSpace(reg.Username)
	if _, err := s.findByUsername(ctx, username); err == nil {
		return models.User{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{
		Username:     username,
		Email:        strings.TrimSpace(reg.Email),
		PasswordHash: string(hashed),
		Role:         role,
		Name:         strings.TrimSpace(reg.Name),
		CreatedAt:    s.now().UTC(),
	}
	fields, err := store.FieldsOf(u)
	if err != nil {
		return models.User{}, err
	}
	id, err := s.Users.Create(ctx, db.UsersCollection, fields)
	if err != nil {
		return models.User{}, err
	}
	u.ID = id
	s.Log.Info("user registered", zap.String("username", u.Username), zap.String("role", role))
	return u, nil
}

// Login checks the password and returns a fresh access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, models.User, error) {
	u, err := s.findByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", models.User{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", models.User{}, err
	}
	u.LastLogin = s.now().UTC()
	if err := s.Users.Update(ctx, db.UsersCollection, u.ID, store.Fields{"last_login": u.LastLogin}); err != nil {
		s.Log.Warn("failed to record last login", zap.String("userId", u.ID), zap.Error(err))
	}
	return token, u, nil
}

func (s *Service) IssueToken(u models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: u.Username,
		UserID:   u.ID,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
			Subject:   u.ID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// UserForToken resolves a token to the stored user it names.
func (s *Service) UserForToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	doc, err := s.Users.Get(ctx, db.UsersCollection, claims.UserID)
	if err != nil {
		return nil, err
	}
	u, err := store.Decode[models.User](doc)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) findByUsername(ctx context.Context, username string) (models.User, error) {
	snap, err := s.Users.Fetch(ctx, db.UsersCollection, store.Filter{"username": username})
	if err != nil {
		return models.User{}, err
	}
	users, err := store.DecodeAll[models.User](snap)
	if err != nil {
		return models.User{}, err
	}
	if len(users) == 0 {
		return models.User{}, store.ErrNotFound
	}
	return users[0], nil
}
