package services

import (
	"context"
	"errors"
	"time"

	"anonlink/config"
	"anonlink/models"
	"anonlink/repositories"
	"anonlink/utils"

	"gorm.io/gorm"
)

type RegisterInput struct {
	Username string
	Password string
	Nickname string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

type LoginOutput struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

type ProfileOutput struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname"`
	StorageQuota int64     `json:"storage_quota"`
	StorageUsed  int64     `json:"storage_used"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (AuthUser, error)
	Login(ctx context.Context, in LoginInput) (LoginOutput, error)
	GetProfile(ctx context.Context, userID uint) (ProfileOutput, error)
}

type authService struct {
	txManager TxManager
	users     repositories.UserRepository
}

func NewAuthService(txManager TxManager, users repositories.UserRepository) AuthService {
	return &authService{txManager: txManager, users: users}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (AuthUser, error) {
	count, err := s.users.CountByUsername(ctx, in.Username)
	if err != nil {
		return AuthUser{}, newAppError(KindInternal, "failed to check username", err)
	}
	if count > 0 {
		return AuthUser{}, newAppError(KindValidation, "username already exists", nil)
	}

	hashedPassword, err := utils.HashPassword(in.Password)
	if err != nil {
		return AuthUser{}, newAppError(KindInternal, "failed to hash password", err)
	}

	user := models.User{
		Username:     in.Username,
		Password:     hashedPassword,
		Nickname:     in.Nickname,
		StorageQuota: config.AppConfig.Storage.DefaultUserQuota,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.users.Create(ctx, tx, &user)
	})
	if err != nil {
		return AuthUser{}, newAppError(KindInternal, "failed to create user", err)
	}

	return AuthUser{ID: user.ID, Username: user.Username, Nickname: user.Nickname}, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	user, err := s.users.GetByUsername(ctx, nil, in.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LoginOutput{}, newAppError(KindUnauthorized, "invalid username or password", nil)
		}
		return LoginOutput{}, newAppError(KindInternal, "failed to query user", err)
	}

	if !utils.CheckPassword(in.Password, user.Password) {
		return LoginOutput{}, newAppError(KindUnauthorized, "invalid username or password", nil)
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		return LoginOutput{}, newAppError(KindInternal, "failed to generate token", err)
	}

	return LoginOutput{
		Token: token,
		User:  AuthUser{ID: user.ID, Username: user.Username, Nickname: user.Nickname},
	}, nil
}

func (s *authService) GetProfile(ctx context.Context, userID uint) (ProfileOutput, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProfileOutput{}, newAppError(KindNotFound, "user not found", nil)
		}
		return ProfileOutput{}, newAppError(KindInternal, "failed to query user", err)
	}

	return ProfileOutput{
		ID:           user.ID,
		Username:     user.Username,
		Nickname:     user.Nickname,
		StorageQuota: user.StorageQuota,
		StorageUsed:  user.StorageUsed,
		CreatedAt:    user.CreatedAt,
	}, nil
}
