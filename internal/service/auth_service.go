package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/pkg/apperror"
	"github.com/ecodvor/scrap-backend/internal/repository"
	"github.com/ecodvor/scrap-backend/internal/validation"
)

// UserRepository описывает доступ к пользователям для сервиса авторизации.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService отвечает за регистрацию и вход.
type AuthService struct {
	users  UserRepository
	tokens *TokenManager
}

// NewAuthService создаёт сервис авторизации.
func NewAuthService(users UserRepository, tokens *TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// RegisterInput — данные регистрации.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    *string
	Role     string
	Address  *string
}

// Register создаёт пользователя и выдаёт пару токенов.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, *TokenPair, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateRole(in.Role); err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось захэшировать пароль")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		Role:         in.Role,
		Address:      in.Address,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, nil, apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")
		}
		return nil, nil, err
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return user, pair, nil
}

// Login проверяет учётные данные и выдаёт пару токенов.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, apperror.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperror.ErrInvalidCredentials
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return user, pair, nil
}

// Refresh обменивает refresh токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось выпустить токены")
	}
	return pair, nil
}
