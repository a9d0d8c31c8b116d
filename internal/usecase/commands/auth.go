package commands

import (
	"context"

	"vmbook/internal/domain/user"
	"vmbook/internal/infra"
	"vmbook/internal/pkg/errs"
	"vmbook/internal/pkg/jwt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

type LoginResult struct {
	Token    string
	UserID   uuid.UUID
	Username string
	Role     user.Role
}

type AuthCommands interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type authCommandsImpl struct {
	userRepo UserRepository
	jwt      *jwt.Service
}

func NewAuthCommands(userRepo UserRepository, jwtService *jwt.Service) AuthCommands {
	return &authCommandsImpl{
		userRepo: userRepo,
		jwt:      jwtService,
	}
}

func (c *authCommandsImpl) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := c.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			// Same error as a bad password: do not reveal which part failed.
			return nil, errs.ErrInvalidCredentials
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash()), []byte(password)); err != nil {
		return nil, errs.ErrInvalidCredentials
	}

	token, err := c.jwt.GenerateToken(u.ID(), u.Role())
	if err != nil {
		return nil, errs.Wrap(err, "failed to generate token")
	}

	return &LoginResult{
		Token:    token,
		UserID:   u.ID(),
		Username: u.Username(),
		Role:     u.Role(),
	}, nil
}
