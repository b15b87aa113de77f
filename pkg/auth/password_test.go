package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{
			name:       "letters and digit",
			password:   "longpassword1",
			shouldFail: false,
		},
		{
			name:       "mixed with symbols",
			password:   "MyP@ssw0rd!",
			shouldFail: false,
		},
		{
			name:          "too short",
			password:      "abc12",
			shouldFail:    true,
			errorContains: "at least 8 characters",
		},
		{
			name:          "missing digit",
			password:      "onlyletters",
			shouldFail:    true,
			errorContains: "one digit",
		},
		{
			name:          "missing letter",
			password:      "1234567890",
			shouldFail:    true,
			errorContains: "one letter",
		},
		{
			name:          "common password rejected",
			password:      "Password123",
			shouldFail:    true,
			errorContains: "too common",
		},
		{
			name:          "too long for bcrypt",
			password:      strings.Repeat("a", 72) + "1",
			shouldFail:    true,
			errorContains: "at most 72 bytes",
		},
		{
			name:       "exactly 72 bytes",
			password:   strings.Repeat("a", 71) + "1",
			shouldFail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)

			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var pve *PasswordValidationError
			assert.True(t, errors.As(err, &pve))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("longpassword1")
	require.NoError(t, err)
	assert.NotEqual(t, "longpassword1", hash)

	assert.NoError(t, h.Compare(hash, "longpassword1"))
	assert.Error(t, h.Compare(hash, "wrongpassword1"))
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("longpassword1")
	require.NoError(t, err)
	second, err := h.Hash("longpassword1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	h := NewHasher(bcrypt.MinCost + 1)

	hash, err := h.Hash("longpassword1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewHasher(bcrypt.MaxCost+1).cost)
}

func TestHasher_EmptyPassword(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}

func TestComparePassword_AcceptsAnyCost(t *testing.T) {
	hash, err := NewHasher(bcrypt.MinCost).Hash("longpassword1")
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "longpassword1"))
}
