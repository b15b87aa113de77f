package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/projectgrid/internal/auth"
	"github.com/BradenHooton/projectgrid/internal/email"
	"github.com/BradenHooton/projectgrid/internal/models"
	pkgauth "github.com/BradenHooton/projectgrid/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "longpassword1"

type accountFixture struct {
	svc    *AccountService
	users  *memUserRepo
	tokens *memTokenRepo
	mailer *recordingMailer
	clock  *fakeClock
	tm     *auth.TokenManager
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	clock := newFakeClock()
	tm, err := auth.NewTokenManager(auth.TokenConfig{Secret: "account-test-secret-0123456789"})
	require.NoError(t, err)
	tm.SetClock(clock.Now)

	f := &accountFixture{
		users:  newMemUserRepo(),
		tokens: newMemTokenRepo(),
		mailer: &recordingMailer{},
		clock:  clock,
		tm:     tm,
	}
	f.svc = NewAccountService(AccountDeps{
		Users:    f.users,
		Tokens:   f.tokens,
		Issuer:   tm,
		Hasher:   pkgauth.NewHasher(bcrypt.MinCost),
		Mailer:   f.mailer,
		Composer: email.NewComposer("https://app.example.com", ""),
		Logger:   discardLogger(),
	}, DefaultAccountConfig())
	f.svc.now = clock.Now
	return f
}

// registerVerified registers an account and consumes its verification email
func (f *accountFixture) registerVerified(t *testing.T, name, address string) *models.User {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.Register(ctx, name, address, testPassword)
	require.NoError(t, err)
	user, err := f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	require.NoError(t, err)
	return user
}

func TestAccountService_Lifecycle(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	assert.False(t, user.IsEmailVerified)
	assert.NotEqual(t, testPassword, user.PasswordHash)

	pending := f.tokens.forUser(user.ID, models.PurposeEmailVerification)
	require.Len(t, pending, 1)
	assert.WithinDuration(t, f.clock.Now().Add(time.Hour), pending[0].ExpiresAt, time.Second)
	assert.Equal(t, 1, f.mailer.count())
	assert.Equal(t, "ann@x.com", f.mailer.sent[0].To)

	// unverified login with a pending token is refused without a resend
	result, err := f.svc.Login(ctx, "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrEmailNotVerified)
	assert.Nil(t, result)
	assert.Equal(t, 1, f.mailer.count())

	verified, err := f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	require.NoError(t, err)
	assert.True(t, verified.IsEmailVerified)
	assert.Empty(t, f.tokens.forUser(user.ID, models.PurposeEmailVerification))

	result, err = f.svc.Login(ctx, "ann@x.com", testPassword)
	require.NoError(t, err)
	assert.False(t, result.VerificationResent)
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.User.LastLogin)
	assert.True(t, f.clock.Now().Equal(*result.User.LastLogin))

	claims, err := f.tm.Verify(result.Token, models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	err = f.svc.RequestPasswordReset(ctx, "ann@x.com")
	assert.ErrorIs(t, err, models.ErrResetInProgress)
	assert.Len(t, f.tokens.forUser(user.ID, models.PurposePasswordReset), 1)
}

func TestAccountService_Register_NormalizesEmail(t *testing.T) {
	f := newAccountFixture(t)

	user, err := f.svc.Register(context.Background(), "  Ann ", "  Ann@X.com ", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", user.Email)
	assert.Equal(t, "Ann", user.Name)
}

func TestAccountService_Register_DuplicateEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Other Ann", "ANN@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
	assert.Equal(t, 1, f.mailer.count())
}

func TestAccountService_Register_LostCreateRace(t *testing.T) {
	f := newAccountFixture(t)
	f.users.CreateErr = models.ErrConflict

	_, err := f.svc.Register(context.Background(), "Ann", "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
	assert.Equal(t, 0, f.mailer.count())
}

func TestAccountService_Register_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		address  string
		password string
		code     string
	}{
		{"missing name", "", "ann@x.com", testPassword, "validation_failed"},
		{"missing email", "Ann", "  ", testPassword, "validation_failed"},
		{"short password", "Ann", "ann@x.com", "short1", "invalid_password"},
		{"common password", "Ann", "ann@x.com", "password123", "invalid_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t)

			user, err := f.svc.Register(context.Background(), tt.userName, tt.address, tt.password)
			assert.Nil(t, user)
			assert.Equal(t, models.KindValidation, models.KindOf(err))

			var e *models.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.code, e.Code)
			assert.Empty(t, f.users.users)
		})
	}
}

func TestAccountService_Register_DeliveryFailureKeepsRecords(t *testing.T) {
	f := newAccountFixture(t)
	f.mailer.Err = errors.New("smtp: 554 rejected")

	user, err := f.svc.Register(context.Background(), "Ann", "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.Nil(t, user)

	stored, err := f.users.GetByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Len(t, f.tokens.forUser(stored.ID, models.PurposeEmailVerification), 1)
}

func TestAccountService_Register_StoreFailure(t *testing.T) {
	f := newAccountFixture(t)
	f.users.GetByEmailErr = errStoreDown

	_, err := f.svc.Register(context.Background(), "Ann", "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInternal)
}

func TestAccountService_Login_InvalidCredentials(t *testing.T) {
	f := newAccountFixture(t)
	f.registerVerified(t, "Ann", "ann@x.com")
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "ann@x.com", "wrongpassword1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAccountService_Login_UnverifiedExpiredTokenResends(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	first := f.mailer.lastToken()

	f.clock.Advance(2 * time.Hour)

	// the password is not checked on this branch
	result, err := f.svc.Login(ctx, "ann@x.com", "not-the-password1")
	require.NoError(t, err)
	assert.True(t, result.VerificationResent)
	assert.Empty(t, result.Token)
	assert.Nil(t, result.User)
	assert.Equal(t, 2, f.mailer.count())

	stored := f.tokens.forUser(user.ID, models.PurposeEmailVerification)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].ExpiresAt.After(f.clock.Now()))

	second := f.mailer.lastToken()
	assert.NotEqual(t, first, second)
	_, err = f.svc.VerifyEmail(ctx, second)
	assert.NoError(t, err)
}

func TestAccountService_Login_UnverifiedWithoutTokenResends(t *testing.T) {
	f := newAccountFixture(t)
	hash, err := pkgauth.NewHasher(bcrypt.MinCost).Hash(testPassword)
	require.NoError(t, err)
	f.users.add(&models.User{Email: "ann@x.com", Name: "Ann", PasswordHash: hash})

	result, err := f.svc.Login(context.Background(), "ann@x.com", testPassword)
	require.NoError(t, err)
	assert.True(t, result.VerificationResent)
	assert.Equal(t, 1, f.mailer.count())
}

func TestAccountService_Login_ResendDeliveryFailure(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	f.mailer.Err = errors.New("timeout")

	_, err = f.svc.Login(ctx, "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
}

func TestAccountService_VerifyEmail_SingleUse(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	token := f.mailer.lastToken()

	_, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.VerifyEmail(ctx, token)
		assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
	}
}

func TestAccountService_VerifyEmail_AlreadyVerifiedDoesNotMutate(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	_, err = f.users.MarkEmailVerified(ctx, user.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	assert.ErrorIs(t, err, models.ErrAlreadyVerified)
	assert.Len(t, f.tokens.forUser(user.ID, models.PurposeEmailVerification), 1)
}

func TestAccountService_VerifyEmail_Rejections(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user := f.registerVerified(t, "Ann", "ann@x.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	resetToken := f.mailer.lastToken()

	// a login token signed for the same user
	loginToken, err := f.tm.Issue(user.ID, models.PurposeLogin, time.Hour)
	require.NoError(t, err)
	// a correctly signed token that was never persisted
	orphan, err := f.tm.Issue(user.ID, models.PurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"reset token", resetToken},
		{"login token", loginToken},
		{"unknown record", orphan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.VerifyEmail(ctx, tt.token)
			assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
		})
	}
}

func TestAccountService_VerifyEmail_ExpiredRecord(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)

	// the stored expiry is authoritative even while the signed token is still valid
	stored := f.tokens.forUser(user.ID, models.PurposeEmailVerification)
	require.Len(t, stored, 1)
	stored[0].ExpiresAt = f.clock.Now().Add(-time.Minute)

	_, err = f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestAccountService_VerifyEmail_SignedTokenExpired(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	f.clock.Advance(time.Hour + time.Minute)

	_, err = f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestAccountService_VerifyEmail_UserGone(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)
	delete(f.users.users, user.ID)

	_, err = f.svc.VerifyEmail(ctx, f.mailer.lastToken())
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestAccountService_RequestPasswordReset_Rejections(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Ann", "ann@x.com", testPassword)
	require.NoError(t, err)

	err = f.svc.RequestPasswordReset(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	err = f.svc.RequestPasswordReset(ctx, "ann@x.com")
	assert.ErrorIs(t, err, models.ErrEmailNotVerified)
}

func TestAccountService_RequestPasswordReset_ExpiredTokenReplaced(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user := f.registerVerified(t, "Ann", "ann@x.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	first := f.mailer.lastToken()

	f.clock.Advance(11 * time.Minute)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))

	stored := f.tokens.forUser(user.ID, models.PurposePasswordReset)
	require.Len(t, stored, 1)
	assert.WithinDuration(t, f.clock.Now().Add(10*time.Minute), stored[0].ExpiresAt, time.Second)
	assert.NotEqual(t, first, f.mailer.lastToken())
	assert.Contains(t, f.mailer.sent[len(f.mailer.sent)-1].TextBody, "/reset-password?token=")
}

func TestAccountService_ConfirmPasswordReset_RoundTrip(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.registerVerified(t, "Ann", "ann@x.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	token := f.mailer.lastToken()

	const newPassword = "brandnewpass42"
	user, err := f.svc.ConfirmPasswordReset(ctx, token, newPassword, newPassword)
	require.NoError(t, err)
	require.NotNil(t, user.PasswordChangedAt)
	assert.Empty(t, f.tokens.forUser(user.ID, models.PurposePasswordReset))

	_, err = f.svc.Login(ctx, "ann@x.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	result, err := f.svc.Login(ctx, "ann@x.com", newPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = f.svc.ConfirmPasswordReset(ctx, token, newPassword, newPassword)
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestAccountService_ConfirmPasswordReset_Rejections(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.registerVerified(t, "Ann", "ann@x.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	token := f.mailer.lastToken()

	_, err := f.svc.ConfirmPasswordReset(ctx, token, "brandnewpass42", "brandnewpass43")
	assert.ErrorIs(t, err, models.ErrPasswordsDoNotMatch)

	_, err = f.svc.ConfirmPasswordReset(ctx, token, "short", "short")
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = f.svc.ConfirmPasswordReset(ctx, "garbage", "brandnewpass42", "brandnewpass42")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)

	// rejected attempts leave the token usable
	_, err = f.svc.ConfirmPasswordReset(ctx, token, "brandnewpass42", "brandnewpass42")
	assert.NoError(t, err)
}

func TestAccountService_ConfirmPasswordReset_Expired(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	f.registerVerified(t, "Ann", "ann@x.com")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@x.com"))
	token := f.mailer.lastToken()
	f.clock.Advance(11 * time.Minute)

	_, err := f.svc.ConfirmPasswordReset(ctx, token, "brandnewpass42", "brandnewpass42")
	assert.ErrorIs(t, err, models.ErrInvalidOrExpiredToken)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "duplicate_email", resultLabel(models.ErrDuplicateEmail))
	assert.Equal(t, "error", resultLabel(errStoreDown))
}
