package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brgyhealth/records-portal/pkg/config"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// Service handles authentication and actor identity resolution
type Service struct {
	config   *config.Config
	logger   *logger.Logger
	userRepo UserRepository
	password *PasswordManager
}

// NewService creates a new IAM service
func NewService(cfg *config.Config, log *logger.Logger, userRepo UserRepository) *Service {
	return &Service{
		config:   cfg,
		logger:   log,
		userRepo: userRepo,
		password: NewPasswordManager(),
	}
}

// Login authenticates a user and issues an access token
func (s *Service) Login(ctx context.Context, creds *types.Credentials) (*types.AuthToken, error) {
	user, err := s.userRepo.GetByUsername(ctx, creds.Username)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid credentials")
		}
		return nil, err
	}

	if !user.IsActive {
		s.logger.Security("login_inactive_account", user.ID, nil)
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "account is deactivated")
	}

	ok, err := s.password.VerifyPassword(user.PasswordHash, creds.Password)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "password verification failed", err)
	}
	if !ok {
		s.logger.Security("login_bad_password", user.ID, nil)
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid credentials")
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to generate token", err)
	}

	s.logger.WithUserID(user.ID).Info("User logged in")
	return &types.AuthToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.JWT.AccessTokenTTL),
		IssuedAt:    time.Now(),
	}, nil
}

// RegisterUser creates a portal account with a hashed password
func (s *Service) RegisterUser(ctx context.Context, username, fullName, password string, role types.UserRole) (*types.User, error) {
	if username == "" || password == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "username and password are required", nil)
	}

	hash, err := s.password.HashPassword(password)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}

	user := &types.User{
		Username:     username,
		FullName:     fullName,
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	}

	return s.userRepo.Create(ctx, user)
}

// VerifyToken parses and validates an access token, returning the actor identity
func (s *Service) VerifyToken(tokenString string) (*types.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "invalid token claims")
	}

	actor := &types.Actor{}
	if v, ok := claims["user_id"].(string); ok {
		actor.UserID = v
	}
	if v, ok := claims["username"].(string); ok {
		actor.Username = v
	}
	if v, ok := claims["full_name"].(string); ok {
		actor.FullName = v
	}
	if v, ok := claims["role"].(string); ok {
		actor.Role = types.UserRole(v)
	}

	if actor.UserID == "" {
		return nil, types.NewAuthenticationError(types.ErrCodeAuthenticationFailed, "token missing user identity")
	}

	return actor, nil
}

func (s *Service) generateAccessToken(user *types.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   user.ID,
		"username":  user.Username,
		"full_name": user.FullName,
		"role":      string(user.Role),
		"iss":       s.config.JWT.Issuer,
		"aud":       s.config.JWT.Audience,
		"exp":       time.Now().Add(time.Duration(s.config.JWT.AccessTokenTTL) * time.Second).Unix(),
		"iat":       time.Now().Unix(),
		"nbf":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWT.SecretKey))
}
