package ports

import (
	"context"

	"github.com/clientcheck/trust-system/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password, email, role string, externalID int64) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
