package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/projectgrid/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-characters-long!!"

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	return tm
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	assert.Error(t, err)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	tm := newTestManager(t)

	for _, purpose := range models.Purposes {
		t.Run(purpose.String(), func(t *testing.T) {
			token, err := tm.Issue("user-1", purpose, time.Hour)
			require.NoError(t, err)

			claims, err := tm.Verify(token, purpose)
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.UserID())
			assert.Equal(t, purpose, claims.Purpose)
			assert.Equal(t, TokenIssuer, claims.Issuer)
			assert.NotEmpty(t, claims.ID)
		})
	}
}

func TestTokenManager_TokensAreUnique(t *testing.T) {
	tm := newTestManager(t)

	a, err := tm.Issue("user-1", models.PurposeLogin, time.Hour)
	require.NoError(t, err)
	b, err := tm.Issue("user-1", models.PurposeLogin, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenManager_CrossPurposeRejected(t *testing.T) {
	tm := newTestManager(t)

	for _, minted := range models.Purposes {
		token, err := tm.Issue("user-1", minted, time.Hour)
		require.NoError(t, err)

		for _, expected := range models.Purposes {
			if expected == minted {
				continue
			}
			_, err := tm.Verify(token, expected)
			assert.ErrorIs(t, err, ErrInvalidToken, "%s token accepted as %s", minted, expected)
		}
	}
}

func TestTokenManager_PurposeClaimCheckedWithSharedKey(t *testing.T) {
	tm, err := NewTokenManager(TokenConfig{
		Secret: testSecret,
		PurposeSecrets: map[models.TokenPurpose]string{
			models.PurposeLogin:         "shared-secret-for-both-purposes!",
			models.PurposePasswordReset: "shared-secret-for-both-purposes!",
		},
	})
	require.NoError(t, err)

	token, err := tm.Issue("user-1", models.PurposePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = tm.Verify(token, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := newTestManager(t)
	now := time.Now()
	tm.SetClock(func() time.Time { return now })

	token, err := tm.Issue("user-1", models.PurposePasswordReset, 10*time.Minute)
	require.NoError(t, err)

	tm.SetClock(func() time.Time { return now.Add(11 * time.Minute) })

	_, err = tm.Verify(token, models.PurposePasswordReset)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_ExpiredForeignPurposeIsInvalid(t *testing.T) {
	tm := newTestManager(t)
	now := time.Now()
	tm.SetClock(func() time.Time { return now })

	token, err := tm.Issue("user-1", models.PurposeEmailVerification, time.Minute)
	require.NoError(t, err)

	tm.SetClock(func() time.Time { return now.Add(time.Hour) })

	_, err = tm.Verify(token, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_VerifyRejectsGarbage(t *testing.T) {
	tm := newTestManager(t)
	valid, err := tm.Issue("user-1", models.PurposeLogin, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	inputs := []string{
		"",
		"not-a-token",
		"a.b.c",
		"....",
		tampered,
		valid + "x",
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			_, err := tm.Verify(in, models.PurposeLogin)
			assert.ErrorIs(t, err, ErrInvalidToken, "input %q", in)
		})
	}
}

func TestTokenManager_VerifyRejectsOtherSecret(t *testing.T) {
	tm := newTestManager(t)
	other, err := NewTokenManager(TokenConfig{Secret: "a-completely-different-secret-value"})
	require.NoError(t, err)

	token, err := other.Issue("user-1", models.PurposeLogin, time.Hour)
	require.NoError(t, err)

	_, err = tm.Verify(token, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_VerifyRejectsNoneAlgorithm(t *testing.T) {
	tm := newTestManager(t)
	claims := &models.TokenClaims{
		Purpose: models.PurposeLogin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Verify(token, models.PurposeLogin)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_IssueValidation(t *testing.T) {
	tm := newTestManager(t)

	_, err := tm.Issue("", models.PurposeLogin, time.Hour)
	assert.Error(t, err)

	_, err = tm.Issue("user-1", models.TokenPurpose("admin"), time.Hour)
	assert.Error(t, err)

	_, err = tm.Issue("user-1", models.PurposeLogin, 0)
	assert.Error(t, err)
}

func TestTokenManager_VerifyUnknownPurpose(t *testing.T) {
	tm := newTestManager(t)
	token, err := tm.Issue("user-1", models.PurposeLogin, time.Hour)
	require.NoError(t, err)

	_, err = tm.Verify(token, models.TokenPurpose("admin"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}
