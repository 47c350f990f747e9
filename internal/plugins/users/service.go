package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mackenziemax/userhub/internal/apperror"
	"github.com/mackenziemax/userhub/internal/password"
	"github.com/mackenziemax/userhub/internal/sanitize"
	"github.com/mackenziemax/userhub/internal/validate"
)

// duplicateEmailMessage is shown when an address is already registered.
const duplicateEmailMessage = "an account with this email already exists"

// Service defines the business logic contract for users.
// Handlers call these methods -- they never touch the repository directly.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*User, error)
	List(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id int64, input PatchInput) (*User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

// userService implements Service. Every path that writes a password runs it
// through the hasher first.
type userService struct {
	repo   Repository
	hasher *password.Hasher
	now    func() time.Time
}

// NewService creates a user service.
func NewService(repo Repository, hasher *password.Hasher) Service {
	return &userService{
		repo:   repo,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates input, hashes the password and persists a new user.
// Invalid input and duplicate e-mail addresses are validation errors.
func (s *userService) Create(ctx context.Context, input CreateInput) (*User, error) {
	input.Email = NormalizeEmail(input.Email)
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}

	name := sanitize.Name(input.Name)
	if name == "" {
		return nil, apperror.NewValidation("name: is required")
	}
	email := input.Email

	birthAt, err := parseBirth(input.BirthAt)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == 0 {
		role = RoleUser
	}

	// Check for duplicates before doing expensive hashing.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return nil, apperror.NewValidation(duplicateEmailMessage)
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	now := s.now()
	user := &User{
		Name:      name,
		Email:     email,
		Password:  hash,
		BirthAt:   birthAt,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperror.NewValidation(duplicateEmailMessage)
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)
	return user, nil
}

// List returns all users.
func (s *userService) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing users: %w", err))
	}
	return users, nil
}

// FindByID returns the user or a NotFound error.
func (s *userService) FindByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, passThrough(err, "finding user")
	}
	return user, nil
}

// FindByEmail looks up a user by address after normalizing it.
func (s *userService) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, passThrough(err, "finding user by email")
	}
	return user, nil
}

// Update applies the non-nil fields of input to the user. A new password is
// hashed before it is stored; an empty BirthAt clears the birth date.
func (s *userService) Update(ctx context.Context, id int64, input PatchInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, passThrough(err, "finding user")
	}

	if input.Name != nil {
		name := sanitize.Name(*input.Name)
		if name == "" {
			return nil, apperror.NewValidation("name: is required")
		}
		user.Name = name
	}

	if input.Email != nil {
		email := NormalizeEmail(*input.Email)
		if email != user.Email {
			exists, err := s.repo.EmailExists(ctx, email)
			if err != nil {
				return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
			}
			if exists {
				return nil, apperror.NewValidation(duplicateEmailMessage)
			}
			user.Email = email
		}
	}

	if input.BirthAt != nil {
		if *input.BirthAt == "" {
			user.BirthAt = nil
		} else {
			birthAt, err := parseBirth(input.BirthAt)
			if err != nil {
				return nil, err
			}
			user.BirthAt = birthAt
		}
	}

	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperror.NewValidation("role: must be one of: 1 2")
		}
		user.Role = *input.Role
	}

	if input.Password != nil {
		if !validate.StrongPassword(*input.Password) {
			return nil, apperror.NewValidation("password: must be at least 6 characters with upper-case, lower-case, digit and symbol")
		}
		hash, err := s.hasher.Hash(ctx, *input.Password)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
		}
		user.Password = hash
	}

	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperror.NewValidation(duplicateEmailMessage)
		}
		return nil, passThrough(err, "updating user")
	}

	slog.Info("user updated", slog.Int64("user_id", user.ID))
	return user, nil
}

// SetPassword stores an already-hashed password. Callers hash with the
// shared password.Hasher first.
func (s *userService) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	if err := s.repo.UpdatePassword(ctx, id, passwordHash); err != nil {
		return passThrough(err, "updating password")
	}
	return nil
}

// Delete removes the user or returns NotFound.
func (s *userService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return passThrough(err, "deleting user")
	}
	slog.Info("user deleted", slog.Int64("user_id", id))
	return nil
}

// passThrough returns AppErrors from the repository unchanged and wraps
// anything else as an internal error.
func passThrough(err error, action string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", action, err))
}

func parseBirth(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := validate.ParseDate(*s)
	if err != nil {
		return nil, apperror.NewValidation("birthAt: must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}
