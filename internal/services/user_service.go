package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/storage"
)

const minPasswordLength = 8

var ErrShortPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)

type UserService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewUserService(storage *storage.SQLiteRepository, b *bus.Bus) *UserService {
	return &UserService{storage: storage, bus: b}
}

// CreateUser adds an account. Admins may only create plain users;
// superadmins may create any role.
func (s *UserService) CreateUser(ctx context.Context, actor auth.Identity, u core.User, password string) (core.User, error) {
	if !actor.Role.IsAdmin() {
		return core.User{}, core.ErrForbidden
	}
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	if u.Role != core.RoleUser && actor.Role != core.RoleSuperAdmin {
		return core.User{}, core.ErrForbidden
	}

	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if len(password) < minPasswordLength {
		return core.User{}, &core.FieldError{Field: "password", Err: ErrShortPassword}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash

	created, err := s.storage.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, err
	}
	s.bus.Notify(ctx, bus.DataMutated, KindUser, created.ID)
	return created, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor auth.Identity) ([]core.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, core.ErrForbidden
	}
	return s.storage.ListUsers(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.storage.GetUser(ctx, id)
}

// Authenticate checks an email and password pair. Unknown emails and wrong
// passwords fail the same way.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.storage.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUnauthorized
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return core.User{}, core.ErrUnauthorized
	}
	return u, nil
}
