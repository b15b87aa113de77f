package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/email"
	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/BradenHooton/projectgrid/internal/observability/metrics"
	pkgauth "github.com/BradenHooton/projectgrid/pkg/auth"
	pkglogger "github.com/BradenHooton/projectgrid/pkg/logger"
)

// UserRepository is the credential store
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateName(ctx context.Context, id, name string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// VerificationTokenRepository is the verification token store
type VerificationTokenRepository interface {
	Create(ctx context.Context, token *models.VerificationToken) (*models.VerificationToken, error)
	GetByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.VerificationToken, error)
	GetLatestByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.VerificationToken, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserAndPurpose(ctx context.Context, userID string, purpose models.TokenPurpose) (int64, error)
}

// TokenIssuer mints and verifies purpose-bound signed tokens
type TokenIssuer interface {
	Issue(userID string, purpose models.TokenPurpose, ttl time.Duration) (string, error)
	Verify(token string, purpose models.TokenPurpose) (*models.TokenClaims, error)
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

// Mailer delivers a rendered email
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// AccountConfig holds token lifetimes
type AccountConfig struct {
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	LoginTTL             time.Duration
}

// DefaultAccountConfig returns the standard lifetimes: 1h, 10m, 7d
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		EmailVerificationTTL: time.Hour,
		PasswordResetTTL:     10 * time.Minute,
		LoginTTL:             7 * 24 * time.Hour,
	}
}

// LoginResult is either a granted session or a resent verification email
type LoginResult struct {
	Token              string
	User               *models.User
	VerificationResent bool
}

// AccountService runs the account lifecycle: register, login, verify email, password reset
type AccountService struct {
	users       UserRepository
	tokens      VerificationTokenRepository
	issuer      TokenIssuer
	hasher      PasswordHasher
	mailer      Mailer
	composer    *email.Composer
	timing      *auth.TimingDelay
	cfg         AccountConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// AccountDeps groups the collaborators of AccountService
type AccountDeps struct {
	Users       UserRepository
	Tokens      VerificationTokenRepository
	Issuer      TokenIssuer
	Hasher      PasswordHasher
	Mailer      Mailer
	Composer    *email.Composer
	Timing      *auth.TimingDelay
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

func NewAccountService(deps AccountDeps, cfg AccountConfig) *AccountService {
	return &AccountService{
		users:       deps.Users,
		tokens:      deps.Tokens,
		issuer:      deps.Issuer,
		hasher:      deps.Hasher,
		mailer:      deps.Mailer,
		composer:    deps.Composer,
		timing:      deps.Timing,
		cfg:         cfg,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
		now:         time.Now,
	}
}

// NormalizeEmail trims and lower-cases an address
func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Register creates an unverified account and mails a verification link.
// When delivery fails the user and token rows stay persisted.
func (s *AccountService) Register(ctx context.Context, name, address, password string) (user *models.User, err error) {
	defer func() { metrics.AuthRegistrationsTotal.WithLabelValues(resultLabel(err)).Inc() }()

	address = NormalizeEmail(address)
	name = strings.TrimSpace(name)
	if name == "" || address == "" {
		return nil, models.NewValidationError("name and email are required")
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.NewError(models.KindValidation, models.ErrWeakPassword.Code, err.Error())
	}

	if _, err := s.users.GetByEmail(ctx, address); err == nil {
		s.auditLogger.Failed(ctx, pkglogger.EventRegister, address, models.ErrDuplicateEmail.Code)
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, s.internal(ctx, "failed to look up user by email", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, "failed to hash password", err)
	}

	user, err = s.users.Create(ctx, &models.User{
		Email:        address,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// lost a race against a concurrent registration
			return nil, models.ErrDuplicateEmail
		}
		return nil, s.internal(ctx, "failed to create user", err)
	}

	if err := s.sendVerificationToken(ctx, user, models.PurposeEmailVerification); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	s.auditLogger.Succeeded(ctx, pkglogger.EventRegister, user.ID, user.Email)
	return user, nil
}

// Login grants a session to a verified user with the right password. An unverified
// user is never granted a session: with a pending token they are told to check their
// email, otherwise a fresh verification email is sent.
func (s *AccountService) Login(ctx context.Context, address, password string) (result *LoginResult, err error) {
	start := time.Now()
	defer func() {
		label := resultLabel(err)
		if err == nil && result.VerificationResent {
			label = "verification_resent"
		}
		metrics.AuthLoginsTotal.WithLabelValues(label).Inc()
	}()

	address = NormalizeEmail(address)
	user, err := s.users.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.timing.WaitFrom(ctx, start, false)
			s.auditLogger.Failed(ctx, pkglogger.EventLogin, address, models.ErrInvalidCredentials.Code)
			return nil, models.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "failed to look up user by email", err)
	}

	if !user.IsEmailVerified {
		return s.loginUnverified(ctx, user)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.timing.WaitFrom(ctx, start, false)
		s.auditLogger.Failed(ctx, pkglogger.EventLogin, address, models.ErrInvalidCredentials.Code)
		return nil, models.ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, s.internal(ctx, "failed to update last login", err)
	}
	user.LastLogin = &now

	token, err := s.issuer.Issue(user.ID, models.PurposeLogin, s.cfg.LoginTTL)
	metrics.TokensIssuedTotal.WithLabelValues(models.PurposeLogin.String(), metrics.Result(err)).Inc()
	if err != nil {
		return nil, s.internal(ctx, "failed to issue login token", err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	s.auditLogger.Succeeded(ctx, pkglogger.EventLogin, user.ID, user.Email)
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AccountService) loginUnverified(ctx context.Context, user *models.User) (*LoginResult, error) {
	pending, err := s.tokens.GetLatestByUserAndPurpose(ctx, user.ID, models.PurposeEmailVerification)
	switch {
	case err == nil && !pending.IsExpired(s.now()):
		s.auditLogger.Failed(ctx, pkglogger.EventLogin, user.Email, models.ErrEmailNotVerified.Code)
		return nil, models.ErrEmailNotVerified
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, s.internal(ctx, "failed to look up verification token", err)
	}

	if err := s.sendVerificationToken(ctx, user, models.PurposeEmailVerification); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "verification email resent on login", slog.String("user_id", user.ID))
	return &LoginResult{VerificationResent: true}, nil
}

// VerifyEmail consumes an email-verification token and marks the user verified
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (user *models.User, err error) {
	defer func() { metrics.AccountFlowsTotal.WithLabelValues("verify_email", resultLabel(err)).Inc() }()

	record, user, err := s.consumeToken(ctx, token, models.PurposeEmailVerification)
	if err != nil {
		return nil, err
	}

	if user.IsEmailVerified {
		return nil, models.ErrAlreadyVerified
	}

	user, err = s.users.MarkEmailVerified(ctx, user.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, s.internal(ctx, "failed to mark email verified", err)
	}

	if err := s.tokens.DeleteByID(ctx, record.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, s.internal(ctx, "failed to delete verification token", err)
	}

	s.auditLogger.Succeeded(ctx, pkglogger.EventEmailVerified, user.ID, user.Email)
	return user, nil
}

// RequestPasswordReset mails a reset link to a verified user unless a reset is already pending
func (s *AccountService) RequestPasswordReset(ctx context.Context, address string) (err error) {
	defer func() { metrics.AccountFlowsTotal.WithLabelValues("reset_request", resultLabel(err)).Inc() }()

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(address))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUserNotFound
		}
		return s.internal(ctx, "failed to look up user by email", err)
	}

	if !user.IsEmailVerified {
		return models.ErrEmailNotVerified
	}

	pending, err := s.tokens.GetLatestByUserAndPurpose(ctx, user.ID, models.PurposePasswordReset)
	switch {
	case err == nil && !pending.IsExpired(s.now()):
		return models.ErrResetInProgress
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return s.internal(ctx, "failed to look up reset token", err)
	}

	if err := s.sendVerificationToken(ctx, user, models.PurposePasswordReset); err != nil {
		return err
	}

	s.auditLogger.Succeeded(ctx, pkglogger.EventResetRequested, user.ID, user.Email)
	return nil
}

// ConfirmPasswordReset consumes a reset token and replaces the password hash
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) (user *models.User, err error) {
	defer func() { metrics.AccountFlowsTotal.WithLabelValues("reset_confirm", resultLabel(err)).Inc() }()

	if newPassword != confirmPassword {
		return nil, models.ErrPasswordsDoNotMatch
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, models.NewError(models.KindValidation, models.ErrWeakPassword.Code, err.Error())
	}

	record, user, err := s.consumeToken(ctx, token, models.PurposePasswordReset)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, s.internal(ctx, "failed to hash password", err)
	}

	user, err = s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, s.internal(ctx, "failed to update password", err)
	}

	if err := s.tokens.DeleteByID(ctx, record.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, s.internal(ctx, "failed to delete reset token", err)
	}

	s.auditLogger.Succeeded(ctx, pkglogger.EventPasswordReset, user.ID, user.Email)
	return user, nil
}

// consumeToken verifies token for purpose and loads its record and user.
// It does not delete the record.
func (s *AccountService) consumeToken(ctx context.Context, token string, purpose models.TokenPurpose) (*models.VerificationToken, *models.User, error) {
	claims, err := s.issuer.Verify(token, purpose)
	if err != nil {
		return nil, nil, models.ErrInvalidOrExpiredToken
	}

	record, err := s.tokens.GetByUserAndHash(ctx, claims.UserID(), auth.HashToken(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrInvalidOrExpiredToken
		}
		return nil, nil, s.internal(ctx, "failed to look up verification token", err)
	}
	if record.Purpose != purpose {
		return nil, nil, models.ErrInvalidOrExpiredToken
	}
	if record.IsExpired(s.now()) {
		return nil, nil, models.ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrUserNotFound
		}
		return nil, nil, s.internal(ctx, "failed to look up user", err)
	}
	return record, user, nil
}

// sendVerificationToken replaces any stored token of purpose with a fresh one,
// persists it and mails the link. The record exists before the send is attempted.
func (s *AccountService) sendVerificationToken(ctx context.Context, user *models.User, purpose models.TokenPurpose) error {
	ttl := s.cfg.EmailVerificationTTL
	if purpose == models.PurposePasswordReset {
		ttl = s.cfg.PasswordResetTTL
	}

	if _, err := s.tokens.DeleteByUserAndPurpose(ctx, user.ID, purpose); err != nil {
		return s.internal(ctx, "failed to delete stale tokens", err)
	}

	token, err := s.issuer.Issue(user.ID, purpose, ttl)
	metrics.TokensIssuedTotal.WithLabelValues(purpose.String(), metrics.Result(err)).Inc()
	if err != nil {
		return s.internal(ctx, "failed to issue token", err)
	}

	now := s.now().UTC()
	if _, err := s.tokens.Create(ctx, &models.VerificationToken{
		UserID:    user.ID,
		Purpose:   purpose,
		TokenHash: auth.HashToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return s.internal(ctx, "failed to persist token", err)
	}

	var msg email.Message
	if purpose == models.PurposePasswordReset {
		msg, err = s.composer.PasswordResetEmail(user.Email, user.Name, token, ttl)
	} else {
		msg, err = s.composer.VerificationEmail(user.Email, user.Name, token, ttl)
	}
	if err != nil {
		return s.internal(ctx, "failed to render email", err)
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "token persisted but email delivery failed",
			slog.String("user_id", user.ID),
			slog.String("purpose", purpose.String()),
			slog.Any("error", err))
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventVerificationSent,
			UserID:        user.ID,
			FailureReason: models.ErrDeliveryFailed.Code,
		})
		return models.ErrDeliveryFailed
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventVerificationSent,
		UserID:    user.ID,
		Success:   true,
		Metadata:  map[string]string{"purpose": purpose.String()},
	})
	return nil
}

func (s *AccountService) internal(ctx context.Context, msg string, err error) error {
	s.logger.ErrorContext(ctx, msg, slog.Any("error", err))
	return models.ErrInternal
}

// resultLabel maps an error to a low-cardinality metrics label
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	var e *models.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "error"
}
