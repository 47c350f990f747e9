package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/mackenziemax/userhub/internal/apperror"
	"github.com/mackenziemax/userhub/internal/password"
	"github.com/mackenziemax/userhub/internal/plugins/mail"
	"github.com/mackenziemax/userhub/internal/plugins/users"
	"github.com/mackenziemax/userhub/internal/token"
)

// Messages returned to clients. Login uses one message for unknown e-mail
// and wrong password so callers cannot probe for accounts.
const (
	msgBadCredentials = "incorrect email and/or password"
	msgUnknownEmail   = "incorrect email"
	msgInvalidToken   = "invalid token"
)

// Service defines the business logic contract for authentication.
// Handlers and the request guard call these methods.
type Service interface {
	Login(ctx context.Context, email, password string) (*AccessToken, error)
	Register(ctx context.Context, input users.CreateInput) (*AccessToken, error)
	CheckToken(raw string) (*token.Claims, error)
	IsValidToken(raw string) bool
	CreateToken(user *users.User) (*AccessToken, error)
	Forget(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, newPassword, raw string) (*AccessToken, error)
}

// authService implements Service.
type authService struct {
	store  UserStore
	hasher *password.Hasher
	codec  *token.Codec
	mailer mail.Mailer
	cfg    Config

	// dummyHash is verified against when the e-mail is unknown so both
	// login failures cost one hash computation.
	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an auth service with the given dependencies.
func NewService(store UserStore, hasher *password.Hasher, codec *token.Codec, mailer mail.Mailer, cfg Config) Service {
	return &authService{
		store:  store,
		hasher: hasher,
		codec:  codec,
		mailer: mailer,
		cfg:    cfg,
	}
}

// Login authenticates by e-mail and password and issues an access token.
// Unknown e-mail and wrong password produce identical errors.
func (s *authService) Login(ctx context.Context, email, plaintext string) (*AccessToken, error) {
	user, err := s.store.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if !apperror.IsNotFound(err) {
			return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
		}
		s.hasher.Verify(ctx, plaintext, s.fakeHash())
		slog.Warn("login failed", slog.String("reason", "unknown_email"))
		return nil, apperror.NewUnauthorized(msgBadCredentials)
	}

	if !s.hasher.Verify(ctx, plaintext, user.Password) {
		slog.Warn("login failed",
			slog.String("reason", "bad_password"),
			slog.Int64("user_id", user.ID),
		)
		return nil, apperror.NewUnauthorized(msgBadCredentials)
	}

	s.upgradeHash(ctx, user, plaintext)

	slog.Info("user logged in", slog.Int64("user_id", user.ID))
	return s.CreateToken(user)
}

// upgradeHash re-hashes the password when the stored hash uses bcrypt or
// outdated argon2 parameters. Failures are logged and never fail the login.
func (s *authService) upgradeHash(ctx context.Context, user *users.User, plaintext string) {
	if !s.hasher.NeedsRehash(user.Password) {
		return
	}
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err == nil {
		err = s.store.SetPassword(ctx, user.ID, hash)
	}
	if err != nil {
		slog.Warn("password rehash failed",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
		return
	}
	user.Password = hash
	slog.Info("password hash upgraded", slog.Int64("user_id", user.ID))
}

func (s *authService) fakeHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.Background(), "not-a-real-password")
		if err != nil {
			slog.Warn("generating dummy hash", slog.Any("error", err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Register creates the user through the store and issues an access token.
// Store rejections (validation, duplicate e-mail) are returned unchanged.
func (s *authService) Register(ctx context.Context, input users.CreateInput) (*AccessToken, error) {
	user, err := s.store.Create(ctx, input)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered", slog.Int64("user_id", user.ID))

	// The welcome mail is best-effort; registration already succeeded.
	welcome := mail.Message{
		To:       user.Email,
		Subject:  "Welcome to userhub",
		Template: mail.TemplateWelcome,
		Data:     map[string]string{"name": user.Name, "email": user.Email},
	}
	if err := s.mailer.Send(ctx, welcome); err != nil {
		slog.Warn("welcome mail not queued",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return s.CreateToken(user)
}

// CheckToken verifies an access token. Failures are BadRequest errors
// wrapping token.ErrInvalidToken.
func (s *authService) CheckToken(raw string) (*token.Claims, error) {
	claims, err := s.codec.Verify(raw, token.AccessScope)
	if err != nil {
		return nil, apperror.NewBadRequest(msgInvalidToken).WithInternal(err)
	}
	return claims, nil
}

// IsValidToken reports whether raw is a valid access token.
func (s *authService) IsValidToken(raw string) bool {
	_, err := s.CheckToken(raw)
	return err == nil
}

// CreateToken signs an access token for user.
func (s *authService) CreateToken(user *users.User) (*AccessToken, error) {
	raw, err := s.codec.Sign(token.Claims{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}, token.SignOptions{
		ExpiresIn: s.cfg.AccessTokenTTL,
		Subject:   strconv.FormatInt(user.ID, 10),
		Scope:     token.AccessScope,
	})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("signing access token: %w", err))
	}
	return &AccessToken{AccessToken: raw}, nil
}

// Forget issues a reset token for the account and queues the reset e-mail.
// It returns true only once the mailer accepted the message.
func (s *authService) Forget(ctx context.Context, email string) (bool, error) {
	user, err := s.store.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, apperror.NewUnauthorized(msgUnknownEmail)
		}
		return false, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	raw, err := s.codec.Sign(token.Claims{ID: user.ID}, token.SignOptions{
		ExpiresIn: s.cfg.ResetTokenTTL,
		Subject:   strconv.FormatInt(user.ID, 10),
		Scope:     token.ResetScope,
	})
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("signing reset token: %w", err))
	}

	msg := mail.Message{
		To:       user.Email,
		Subject:  "Password reset",
		Template: mail.TemplateForget,
		Data: map[string]string{
			"name":     user.Name,
			"token":    raw,
			"resetURL": s.resetURL(raw),
			"validFor": mail.FormatValidity(s.cfg.ResetTokenTTL),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("reset mail not queued",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
		return false, apperror.NewDelivery(err)
	}

	slog.Info("password reset requested", slog.Int64("user_id", user.ID))
	return true, nil
}

func (s *authService) resetURL(raw string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/reset?token=" + url.QueryEscape(raw)
}

// Reset verifies a reset token, stores the new password and issues a fresh
// access token. The reset token stays valid until it expires.
func (s *authService) Reset(ctx context.Context, newPassword, raw string) (*AccessToken, error) {
	claims, err := s.codec.Verify(raw, token.ResetScope)
	if err != nil {
		return nil, apperror.NewBadRequest(msgInvalidToken).WithInternal(err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperror.NewBadRequest(msgInvalidToken)
	}

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewBadRequest(msgInvalidToken).WithInternal(err)
		}
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}
	if err := s.store.SetPassword(ctx, user.ID, hash); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewBadRequest(msgInvalidToken).WithInternal(err)
		}
		return nil, apperror.NewInternal(fmt.Errorf("storing password: %w", err))
	}
	user.Password = hash

	slog.Info("password reset completed", slog.Int64("user_id", user.ID))
	return s.CreateToken(user)
}
