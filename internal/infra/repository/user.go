package repository

import (
	"context"
	"time"

	"vmbook/internal/domain/user"
	"vmbook/internal/infra"
	"vmbook/internal/infra/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	const q = `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1`

	var (
		id           uuid.UUID
		name         string
		passwordHash string
		role         string
		createdAt    time.Time
	)
	err := r.pool.QueryRow(ctx, q, username).Scan(&id, &name, &passwordHash, &role, &createdAt)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("user not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find user by username", err)
	}

	return user.ReconstructUser(id, name, passwordHash, user.Role(role), createdAt), nil
}
