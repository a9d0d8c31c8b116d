package response

import (
	"vmbook/internal/usecase/commands"

	"github.com/google/uuid"
)

type LoginResponse struct {
	Token    string    `json:"token"`
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

func FromLoginResult(result *commands.LoginResult) *LoginResponse {
	return &LoginResponse{
		Token:    result.Token,
		UserID:   result.UserID,
		Username: result.Username,
		Role:     result.Role.String(),
	}
}
