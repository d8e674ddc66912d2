package iam

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brgyhealth/records-portal/pkg/config"
	"github.com/brgyhealth/records-portal/pkg/logger"
	"github.com/brgyhealth/records-portal/pkg/types"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *types.User) (*types.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID string) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func setupTestService() (*Service, *MockUserRepository) {
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey:      "test-secret-key",
			AccessTokenTTL: 3600,
			Issuer:         "records-portal",
			Audience:       "records-portal-users",
		},
	}
	mockRepo := &MockUserRepository{}
	return NewService(cfg, logger.New("debug"), mockRepo), mockRepo
}

func activeUser(t *testing.T, password string) *types.User {
	hash, err := NewPasswordManager().HashPassword(password)
	require.NoError(t, err)
	return &types.User{
		ID:           "user-1",
		Username:     "mcruz",
		FullName:     "Maria Cruz",
		Role:         types.RoleBHW,
		PasswordHash: hash,
		IsActive:     true,
	}
}

func TestPasswordManager_RoundTrip(t *testing.T) {
	pm := NewPasswordManager()

	hash, err := pm.HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)

	ok, err := pm.VerifyPassword(hash, "s3cret-password")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = pm.VerifyPassword(hash, "wrong-password")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLogin_Success(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("GetByUsername", mock.Anything, "mcruz").Return(activeUser(t, "s3cret-password"), nil)

	token, err := service.Login(context.Background(), &types.Credentials{
		Username: "mcruz",
		Password: "s3cret-password",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
}

func TestLogin_WrongPassword(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("GetByUsername", mock.Anything, "mcruz").Return(activeUser(t, "s3cret-password"), nil)

	_, err := service.Login(context.Background(), &types.Credentials{
		Username: "mcruz",
		Password: "wrong-password",
	})

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthentication))
}

func TestLogin_UnknownUserLooksLikeBadCredentials(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("GetByUsername", mock.Anything, "ghost").
		Return(nil, types.NewNotFoundError(types.ErrCodeNotFound, "user not found"))

	_, err := service.Login(context.Background(), &types.Credentials{
		Username: "ghost",
		Password: "whatever",
	})

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthentication))
}

func TestLogin_InactiveAccount(t *testing.T) {
	service, mockRepo := setupTestService()

	user := activeUser(t, "s3cret-password")
	user.IsActive = false
	mockRepo.On("GetByUsername", mock.Anything, "mcruz").Return(user, nil)

	_, err := service.Login(context.Background(), &types.Credentials{
		Username: "mcruz",
		Password: "s3cret-password",
	})

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthentication))
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("GetByUsername", mock.Anything, "mcruz").Return(activeUser(t, "s3cret-password"), nil)

	token, err := service.Login(context.Background(), &types.Credentials{
		Username: "mcruz",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	actor, err := service.VerifyToken(token.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, "user-1", actor.UserID)
	assert.Equal(t, "Maria Cruz", actor.FullName)
	assert.Equal(t, types.RoleBHW, actor.Role)
}

func TestVerifyToken_GarbageRejected(t *testing.T) {
	service, _ := setupTestService()

	_, err := service.VerifyToken("not-a-token")

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthentication))
}

func TestRegisterUser_HashesPassword(t *testing.T) {
	service, mockRepo := setupTestService()

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *types.User) bool {
		return u.Username == "nlim" && u.PasswordHash != "s3cret-password" && u.IsActive
	})).Return(&types.User{ID: "user-2", Username: "nlim"}, nil)

	user, err := service.RegisterUser(context.Background(), "nlim", "Nena Lim", "s3cret-password", types.RoleBNS)

	require.NoError(t, err)
	assert.Equal(t, "user-2", user.ID)
	mockRepo.AssertExpectations(t)
}

func TestRegisterUser_RequiresCredentials(t *testing.T) {
	service, _ := setupTestService()

	_, err := service.RegisterUser(context.Background(), "", "Nena Lim", "", types.RoleBNS)

	assert.Error(t, err)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeValidation))
}
